package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

// listenGrace время, за которое ListenAndServe должен упасть при ошибке bind
const listenGrace = 100 * time.Millisecond

// SipgoStack реализация Stack поверх emiago/sipgo
type SipgoStack struct {
	mu     sync.RWMutex
	ua     *sipgo.UserAgent
	client *sipgo.Client
	server *sipgo.Server
	cfg    Config

	cancel   context.CancelFunc
	served   chan struct{}
	handlers map[sip.RequestMethod]RequestHandler

	logger *slog.Logger
}

// NewSipgoStack создает незапущенный стек
func NewSipgoStack(logger *slog.Logger) *SipgoStack {
	if logger == nil {
		logger = slog.Default()
	}
	return &SipgoStack{
		handlers: make(map[sip.RequestMethod]RequestHandler),
		logger:   logger.With(slog.String("component", "sip.stack")),
	}
}

// Init создает UA, клиент и сервер и начинает слушать адрес из cfg
func (s *SipgoStack) Init(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ua != nil {
		return errors.New("sipgo stack already initialized")
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "IMSPhone/1.0"
	}

	ua, err := sipgo.NewUA(
		sipgo.WithUserAgent(userAgent),
		sipgo.WithUserAgentHostname(cfg.LocalHost),
	)
	if err != nil {
		return fmt.Errorf("create user agent: %w", err)
	}

	client, err := sipgo.NewClient(ua, sipgo.WithClientHostname(cfg.LocalHost))
	if err != nil {
		_ = ua.Close()
		return fmt.Errorf("create client: %w", err)
	}

	server, err := sipgo.NewServer(ua)
	if err != nil {
		_ = client.Close()
		_ = ua.Close()
		return fmt.Errorf("create server: %w", err)
	}

	s.ua, s.client, s.server, s.cfg = ua, client, server, cfg
	for method, h := range s.handlers {
		s.bindLocked(method, h)
	}

	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.served = make(chan struct{})

	addr := net.JoinHostPort(cfg.LocalHost, strconv.Itoa(cfg.ListenPort()))
	errCh := make(chan error, 1)
	go func() {
		defer close(s.served)
		errCh <- server.ListenAndServe(serveCtx, cfg.Transport, addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeLocked()
			return fmt.Errorf("listen %s %s: %w", cfg.Transport, addr, err)
		}
	case <-time.After(listenGrace):
	}

	s.logger.Info("listening", slog.String("transport", cfg.Transport), slog.String("addr", addr))
	return nil
}

// Close останавливает прослушивание и закрывает UA
func (s *SipgoStack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *SipgoStack) closeLocked() error {
	if s.ua == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	var errs []error
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}
	if err := s.server.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close server: %w", err))
	}
	if err := s.ua.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close user agent: %w", err))
	}
	s.ua, s.client, s.server = nil, nil, nil
	return errors.Join(errs...)
}

// GenerateCallID возвращает новый Call-ID вида uuid@host
func (s *SipgoStack) GenerateCallID() string {
	s.mu.RLock()
	host := s.cfg.LocalHost
	s.mu.RUnlock()
	return uuid.NewString() + "@" + host
}

// Send отправляет запрос в новой клиентской транзакции.
// Via, From/To теги и прочие недостающие поля заполняет sipgo.
func (s *SipgoStack) Send(ctx context.Context, req *sip.Request) (ClientTx, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil, ErrStackNotInitialized
	}
	return client.TransactionRequest(ctx, req)
}

// RouteSet маршрут через outbound прокси (loose routing)
func (s *SipgoStack) RouteSet() []sip.Uri {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg.ProxyHost == "" {
		return nil
	}
	params := sip.HeaderParams{"lr": ""}
	if s.cfg.Transport == TransportTCP {
		params["transport"] = TransportTCP
	}
	return []sip.Uri{{
		Scheme:    "sip",
		Host:      s.cfg.ProxyHost,
		Port:      s.cfg.ProxyPort,
		UriParams: params,
	}}
}

// LocalContact Contact этого UA
func (s *SipgoStack) LocalContact() sip.ContactHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uri := sip.Uri{
		Scheme: "sip",
		User:   s.cfg.User,
		Host:   s.cfg.LocalHost,
		Port:   s.cfg.ListenPort(),
	}
	if s.cfg.Transport == TransportTCP {
		uri.UriParams = sip.HeaderParams{"transport": TransportTCP}
	}
	return sip.ContactHeader{DisplayName: s.cfg.DisplayName, Address: uri}
}

// OnRequest регистрирует обработчик входящих запросов
func (s *SipgoStack) OnRequest(method sip.RequestMethod, h RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	if s.server != nil {
		s.bindLocked(method, h)
	}
}

func (s *SipgoStack) bindLocked(method sip.RequestMethod, h RequestHandler) {
	logger := s.logger
	s.server.OnRequest(method, func(req *sip.Request, tx sip.ServerTransaction) {
		resp := h(req)
		if resp == nil {
			return
		}
		if err := tx.Respond(resp); err != nil {
			logger.Error("respond failed",
				slog.String("method", req.Method.String()),
				slog.Any("error", err))
		}
	})
}
