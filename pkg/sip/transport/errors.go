package transport

import "errors"

var (
	// ErrStackNotInitialized возвращается, когда стек еще не создан или уже закрыт
	ErrStackNotInitialized = errors.New("sip stack not initialized")

	// ErrNotRegistered возвращается на 403 без Warning вне REGISTER:
	// сессия на сервере потеряна, запущена перерегистрация
	ErrNotRegistered = errors.New("not registered")

	// ErrInvalidConfig возвращается при некорректной конфигурации стека
	ErrInvalidConfig = errors.New("invalid stack config")

	// ErrNoProxy возвращается, если не удалось определить адрес прокси
	ErrNoProxy = errors.New("no proxy address")
)
