package refresh

import (
	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
)

// Outcome класс ответа для диспетчеризации цикла
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeChallenge
	OutcomeConditionalFailed
	OutcomeIntervalTooBrief
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeChallenge:
		return "challenge"
	case OutcomeConditionalFailed:
		return "conditional_failed"
	case OutcomeIntervalTooBrief:
		return "interval_too_brief"
	default:
		return "failure"
	}
}

// Strategy то, чем потоки отличаются друг от друга.
//
// Методы вызываются под мьютексом потока и не должны обращаться
// обратно к Refresher.
type Strategy interface {
	// BuildInitial строит первый запрос цикла, начатого вызывающим
	BuildInitial(p *dialog.DialogPath, expires int) (*sip.Request, error)
	// BuildRefresh строит запрос по таймеру или при завершении (expires == 0)
	BuildRefresh(p *dialog.DialogPath, expires int) (*sip.Request, error)
	Classify(tc *transport.TransactionContext) Outcome
	// OnSuccess вызывается на финальный 2xx с подтвержденным сроком
	OnSuccess(tc *transport.TransactionContext, expires int)
	OnFailure(err error)
}

// ConditionalStrategy поток с условными запросами (PUBLISH)
type ConditionalStrategy interface {
	// ResetCondition сбрасывает entity-tag после 412
	ResetCondition()
}

// DialogStrategy поток, чей 2xx создает диалог (SUBSCRIBE)
type DialogStrategy interface {
	EstablishesDialog() bool
}

// ClassifyStatus общая классификация. 202 считается успехом наравне с 200.
func ClassifyStatus(tc *transport.TransactionContext) Outcome {
	if tc == nil || tc.IsTimeout() {
		return OutcomeFailure
	}
	code := tc.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == 401 || code == 407:
		return OutcomeChallenge
	case code == 412:
		return OutcomeConditionalFailed
	case code == 423:
		return OutcomeIntervalTooBrief
	}
	return OutcomeFailure
}

// classifyUnconditional как ClassifyStatus, но 412 это отказ
func classifyUnconditional(tc *transport.TransactionContext) Outcome {
	o := ClassifyStatus(tc)
	if o == OutcomeConditionalFailed {
		return OutcomeFailure
	}
	return o
}
