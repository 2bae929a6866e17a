package refresh

import (
	"context"
	"log/slog"
	"strings"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/message"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
)

// SubscribeManager поток SUBSCRIBE одного пакета событий
type SubscribeManager struct {
	*Refresher
	s *subscribeStrategy
}

// NewSubscribeManager создает поток подписки с заданными Event/Accept
func NewSubscribeManager(cfg Config, sender Sender, factory *message.Factory, params message.SubscribeParams, opts ...Option) (*SubscribeManager, error) {
	o := newOptions(opts)
	s := &subscribeStrategy{
		factory: factory,
		params:  params,
		logger:  o.logger.With(slog.String("component", "refresh"), slog.String("flow", cfg.Name)),
	}
	r, err := NewRefresher(cfg, sender, s, opts...)
	if err != nil {
		return nil, err
	}
	return &SubscribeManager{Refresher: r, s: s}, nil
}

// NewPresenceSubscribeManager подписка на presence списка контактов (RLS)
func NewPresenceSubscribeManager(cfg Config, sender Sender, factory *message.Factory, opts ...Option) (*SubscribeManager, error) {
	if cfg.Name == "" {
		cfg.Name = "presence"
	}
	if cfg.MinExpiresKey == "" {
		cfg.MinExpiresKey = store.KeySubscribeMinExpire
	}
	return NewSubscribeManager(cfg, sender, factory, message.SubscribeParams{
		Event:     message.EventPresence,
		Accept:    []string{message.ContentTypePIDF, message.ContentTypeRLMI, message.ContentTypeMultipart},
		Supported: []string{"eventlist"},
	}, opts...)
}

// NewWinfoSubscribeManager подписка на наблюдателей своего presence
func NewWinfoSubscribeManager(cfg Config, sender Sender, factory *message.Factory, opts ...Option) (*SubscribeManager, error) {
	if cfg.Name == "" {
		cfg.Name = "winfo"
	}
	if cfg.MinExpiresKey == "" {
		cfg.MinExpiresKey = store.KeyWinfoMinExpire
	}
	return NewSubscribeManager(cfg, sender, factory, message.SubscribeParams{
		Event:  message.EventPresenceWinfo,
		Accept: []string{message.ContentTypeWatcherInfo},
	}, opts...)
}

// Subscribe начинает подписку в новом диалоге
func (m *SubscribeManager) Subscribe(ctx context.Context) error {
	return m.Start(ctx)
}

// Unsubscribe отправляет SUBSCRIBE с Expires: 0 в текущем диалоге
func (m *SubscribeManager) Unsubscribe(ctx context.Context) error {
	return m.Stop(ctx)
}

// Event пакет событий потока
func (m *SubscribeManager) Event() string {
	return m.s.params.Event
}

// MatchNotify проверяет, что NOTIFY относится к текущему диалогу подписки,
// и принимает его CSeq. NOTIFY может прийти раньше 2xx на SUBSCRIBE,
// тогда удаленный тег берется из его From.
func (m *SubscribeManager) MatchNotify(req *sip.Request) bool {
	p := m.Path()
	if p == nil || req == nil {
		return false
	}
	if callID := req.CallID(); callID == nil || callID.Value() != p.CallID() {
		return false
	}
	to := req.To()
	if to == nil {
		return false
	}
	if tag, _ := to.Params.Get("tag"); tag != p.LocalTag() {
		return false
	}
	if !strings.EqualFold(EventPackage(req), m.s.params.Event) {
		return false
	}
	cseq := req.CSeq()
	if cseq == nil {
		return false
	}

	if from := req.From(); from != nil && p.RemoteTag() == "" {
		if tag, ok := from.Params.Get("tag"); ok {
			_ = p.SetRemoteTag(tag)
		}
	}
	return p.AcceptRemoteCSeq(cseq.SeqNo, string(cseq.MethodName))
}

// HandleTerminated вызывается на NOTIFY с Subscription-State: terminated.
// Поток становится неактивным, следующий Check подпишется заново.
func (m *SubscribeManager) HandleTerminated(reason string) {
	m.s.logger.Info("subscription terminated by server", slog.String("reason", reason))
	m.MarkInactive()
}

// EventPackage имя пакета из заголовка Event без параметров
func EventPackage(req *sip.Request) string {
	h := req.GetHeader("Event")
	if h == nil {
		return ""
	}
	name, _, _ := strings.Cut(h.Value(), ";")
	return strings.TrimSpace(name)
}

type subscribeStrategy struct {
	factory *message.Factory
	params  message.SubscribeParams
	logger  *slog.Logger
}

func (s *subscribeStrategy) BuildInitial(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.build(p, expires)
}

func (s *subscribeStrategy) BuildRefresh(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.build(p, expires)
}

func (s *subscribeStrategy) build(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	params := s.params
	params.Expires = expires
	return s.factory.Subscribe(p, params)
}

func (s *subscribeStrategy) Classify(tc *transport.TransactionContext) Outcome {
	return classifyUnconditional(tc)
}

func (s *subscribeStrategy) OnSuccess(tc *transport.TransactionContext, expires int) {
	s.logger.Debug("subscription confirmed",
		slog.Int("status", tc.StatusCode()),
		slog.Int("expires", expires))
}

func (s *subscribeStrategy) OnFailure(err error) {
	s.logger.Debug("subscribe cycle failed", slog.Any("error", err))
}

func (s *subscribeStrategy) EstablishesDialog() bool { return true }
