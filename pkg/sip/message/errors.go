package message

import (
	"errors"
	"fmt"

	"github.com/arzzra/ims_phone/pkg/sip/transport"
)

var (
	// ErrInvalidURI некорректный Request-URI или адрес стороны
	ErrInvalidURI = errors.New("invalid URI")
	// ErrUnsupportedContent тело без типа или тип, который сообщение не может нести
	ErrUnsupportedContent = errors.New("unsupported content")
	// ErrStackNotInitialized у стека нет Contact или маршрута
	ErrStackNotInitialized = transport.ErrStackNotInitialized
	// ErrNoInvite для ACK/CANCEL нет сохраненного INVITE
	ErrNoInvite = errors.New("no INVITE transaction in dialog")
)

// MessageBuildError ошибка построения сообщения
type MessageBuildError struct {
	Method string
	Cause  error
}

func (e *MessageBuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Method, e.Cause)
}

func (e *MessageBuildError) Unwrap() error {
	return e.Cause
}

func buildError(method string, cause error) error {
	return &MessageBuildError{Method: method, Cause: cause}
}
