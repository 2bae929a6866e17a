package dialog

import "errors"

var (
	// ErrRemoteTagChanged удаленный тег уже установлен и отличается от нового
	ErrRemoteTagChanged = errors.New("remote tag already set")
	// ErrEmptyCallID попытка создать диалог без Call-ID
	ErrEmptyCallID = errors.New("empty Call-ID")
)
