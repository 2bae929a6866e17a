package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/metrics"
)

// DefaultTimeout ожидание финального ответа по умолчанию (64*T1)
const DefaultTimeout = 32 * time.Second

// Manager владеет экземпляром Stack.
//
// InitStack и CloseStack сериализованы одним мьютексом: закрытие из одного
// потока не может пересечься с инициализацией из другого. SendAndWait берет
// стек под RLock и дальше работает без блокировки, поэтому транзакции разных
// потоков идут параллельно через один стек.
type Manager struct {
	mu       sync.RWMutex
	newStack func() Stack
	stack    Stack
	cfg      Config
	handlers map[sip.RequestMethod]RequestHandler

	triggerMu sync.RWMutex
	trigger   func()

	logger  *slog.Logger
	metrics *metrics.MetricsCollector
}

// ManagerOption опция Manager
type ManagerOption func(*Manager)

// WithLogger задает логгер
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics задает сборщик метрик
func WithMetrics(mc *metrics.MetricsCollector) ManagerOption {
	return func(m *Manager) {
		m.metrics = mc
	}
}

// NewManager создает менеджер. newStack вызывается на каждый InitStack.
func NewManager(newStack func() Stack, opts ...ManagerOption) *Manager {
	m := &Manager{
		newStack: newStack,
		handlers: make(map[sip.RequestMethod]RequestHandler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "sip.transport"))
	return m
}

// InitStack создает и запускает стек. Активный стек сначала закрывается.
func (m *Manager) InitStack(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stack != nil {
		m.logger.Info("closing active stack before init")
		m.closeLocked()
	}

	st := m.newStack()
	for method, h := range m.handlers {
		st.OnRequest(method, h)
	}
	if err := st.Init(ctx, cfg); err != nil {
		return fmt.Errorf("init sip stack: %w", err)
	}

	m.stack = st
	m.cfg = cfg
	m.logger.Info("sip stack initialized",
		slog.String("local", fmt.Sprintf("%s:%d", cfg.LocalHost, cfg.ListenPort())),
		slog.String("transport", cfg.Transport),
		slog.String("proxy", cfg.ProxyHost))
	return nil
}

// CloseStack останавливает стек. Без стека ничего не делает.
func (m *Manager) CloseStack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.stack == nil {
		return
	}
	if err := m.stack.Close(); err != nil {
		m.logger.Warn("close sip stack", slog.Any("error", err))
	}
	m.stack = nil
}

// IsActive true, пока стек инициализирован
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stack != nil
}

// Config возвращает конфигурацию активного стека
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetReRegistrationTrigger задает функцию, которая запускает перерегистрацию
func (m *Manager) SetReRegistrationTrigger(fn func()) {
	m.triggerMu.Lock()
	defer m.triggerMu.Unlock()
	m.trigger = fn
}

// OnRequest регистрирует обработчик входящих запросов.
// Обработчики переживают пересоздание стека.
func (m *Manager) OnRequest(method sip.RequestMethod, h RequestHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
	if m.stack != nil {
		m.stack.OnRequest(method, h)
	}
}

func (m *Manager) current() (Stack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stack == nil {
		return nil, ErrStackNotInitialized
	}
	return m.stack, nil
}

// GenerateCallID возвращает новый Call-ID
func (m *Manager) GenerateCallID() (string, error) {
	st, err := m.current()
	if err != nil {
		return "", err
	}
	return st.GenerateCallID(), nil
}

// LocalContact возвращает Contact этого UA
func (m *Manager) LocalContact() (sip.ContactHeader, error) {
	st, err := m.current()
	if err != nil {
		return sip.ContactHeader{}, err
	}
	return st.LocalContact(), nil
}

// RouteSet возвращает маршрут через outbound прокси
func (m *Manager) RouteSet() ([]sip.Uri, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}
	return st.RouteSet(), nil
}

// SendAndWait отправляет запрос и блокируется до финального ответа или таймаута.
//
// Таймаут это обычный исход: возвращается контекст с IsTimeout() == true и nil ошибка.
// Ошибка возвращается, если стек не готов, запрос не удалось отправить, ctx отменен,
// или на запрос, отличный от REGISTER, пришел 403 без Warning. В последнем случае
// запускается перерегистрация, ошибка ErrNotRegistered, а контекст с ответом
// возвращается вместе с ней.
func (m *Manager) SendAndWait(ctx context.Context, req *sip.Request, timeout time.Duration) (*TransactionContext, error) {
	st, err := m.current()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	method := req.Method.String()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	m.metrics.RequestSent(method)
	m.logger.Debug("sending request",
		slog.String("method", method),
		slog.String("ruri", req.Recipient.String()))

	tx, err := st.Send(waitCtx, req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	defer tx.Terminate()

	for {
		select {
		case resp, ok := <-tx.Responses():
			if !ok {
				return m.timedOut(req), nil
			}
			if resp.StatusCode < 200 {
				continue
			}
			return m.final(req, resp, start)

		case <-tx.Done():
			// финальный ответ мог прийти одновременно с завершением транзакции
			select {
			case resp := <-tx.Responses():
				if resp != nil && resp.StatusCode >= 200 {
					return m.final(req, resp, start)
				}
			default:
			}
			if txErr := tx.Err(); txErr != nil {
				m.logger.Debug("transaction terminated",
					slog.String("method", method),
					slog.Any("error", txErr))
			}
			return m.timedOut(req), nil

		case <-waitCtx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			return m.timedOut(req), nil
		}
	}
}

func (m *Manager) timedOut(req *sip.Request) *TransactionContext {
	m.metrics.Timeout(req.Method.String())
	m.logger.Warn("no final response", slog.String("method", req.Method.String()))
	return NewTimeoutContext(req)
}

func (m *Manager) final(req *sip.Request, resp *sip.Response, start time.Time) (*TransactionContext, error) {
	tc := NewResponseContext(req, resp)
	m.metrics.ResponseReceived(tc.Method(), tc.StatusCode(), time.Since(start))
	m.logger.Debug("final response",
		slog.String("method", tc.Method()),
		slog.Int("status", tc.StatusCode()),
		slog.String("reason", tc.ReasonPhrase()))

	if isSessionLost(req, resp) {
		m.logger.Warn("403 without Warning, session lost on server",
			slog.String("method", tc.Method()))
		m.fireReRegistration()
		return tc, ErrNotRegistered
	}
	return tc, nil
}

// isSessionLost 403 без Warning на любой запрос, кроме REGISTER
func isSessionLost(req *sip.Request, resp *sip.Response) bool {
	if req.Method == sip.REGISTER {
		return false
	}
	if resp.StatusCode != sip.StatusForbidden {
		return false
	}
	return resp.GetHeader("Warning") == nil
}

func (m *Manager) fireReRegistration() {
	m.triggerMu.RLock()
	fn := m.trigger
	m.triggerMu.RUnlock()

	if fn == nil {
		m.logger.Warn("re-registration trigger not set")
		return
	}
	m.metrics.ReRegistration()
	go fn()
}
