// Package transport владеет экземпляром SIP стека и отправляет запросы
// с блокирующим ожиданием финального ответа.
package transport

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Поддерживаемые транспорты
const (
	TransportUDP = "udp"
	TransportTCP = "tcp"
)

// Config параметры инициализации стека
type Config struct {
	// LocalHost адрес, на котором слушает стек
	LocalHost string
	// LocalPort порт, 0 означает порт по умолчанию для транспорта
	LocalPort int
	// ProxyHost адрес outbound прокси (P-CSCF)
	ProxyHost string
	ProxyPort int
	// Transport udp или tcp
	Transport string
	// NetworkType ip4 или ip6
	NetworkType string

	// User публичная часть identity (user@Domain)
	User        string
	Domain      string
	DisplayName string
	UserAgent   string
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.LocalHost == "" {
		return fmt.Errorf("%w: empty local host", ErrInvalidConfig)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("%w: local port %d", ErrInvalidConfig, c.LocalPort)
	}
	switch c.Transport {
	case TransportUDP, TransportTCP:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return fmt.Errorf("%w: proxy port %d", ErrInvalidConfig, c.ProxyPort)
	}
	return nil
}

// ListenPort возвращает порт прослушивания с учетом значения по умолчанию
func (c Config) ListenPort() int {
	if c.LocalPort != 0 {
		return c.LocalPort
	}
	return 5060
}

// ClientTx клиентская транзакция. Подмножество sip.ClientTransaction.
type ClientTx interface {
	Responses() <-chan *sip.Response
	Done() <-chan struct{}
	Err() error
	Terminate()
}

// RequestHandler обрабатывает входящий запрос вне диалогов транспорта.
// Возвращенный ответ отправляется в серверную транзакцию; nil означает,
// что обработчик ответил сам или ответ не нужен.
type RequestHandler func(req *sip.Request) *sip.Response

// Stack коллаборатор, реализующий сам SIP стек
type Stack interface {
	// Init запускает стек
	Init(ctx context.Context, cfg Config) error
	// Close останавливает стек и освобождает ресурсы
	Close() error
	// GenerateCallID возвращает новый уникальный Call-ID
	GenerateCallID() string
	// Send отправляет запрос и возвращает клиентскую транзакцию
	Send(ctx context.Context, req *sip.Request) (ClientTx, error)
	// RouteSet возвращает маршрут через outbound прокси
	RouteSet() []sip.Uri
	// LocalContact возвращает Contact этого UA
	LocalContact() sip.ContactHeader
	// OnRequest регистрирует обработчик входящих запросов метода
	OnRequest(method sip.RequestMethod, h RequestHandler)
}
