package refresh

import "errors"

var (
	// ErrAuthenticationRequired повторный challenge после отправки учетных данных
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrIntervalTooBrief 423 повторился после повтора с Min-Expires
	ErrIntervalTooBrief = errors.New("interval too brief")
	// ErrConditionalRequestFailed 412 повторился после сброса entity-tag
	ErrConditionalRequestFailed = errors.New("conditional request failed")
	// ErrUnexpectedFailure любой другой неуспешный ответ или таймаут
	ErrUnexpectedFailure = errors.New("unexpected failure")
	// ErrInvalidConfig неполная конфигурация потока
	ErrInvalidConfig = errors.New("invalid refresh config")
)
