// Package presence связывает потоки PUBLISH и SUBSCRIBE, XDMS и входящие
// NOTIFY/OPTIONS в сервис присутствия RCS.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/metrics"
	"github.com/arzzra/ims_phone/pkg/presence/pidf"
	"github.com/arzzra/ims_phone/pkg/presence/refresh"
	"github.com/arzzra/ims_phone/pkg/sip/auth"
	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/message"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
	"github.com/arzzra/ims_phone/pkg/xdm"
)

var (
	// ErrInvalidConfig некорректная конфигурация сервиса
	ErrInvalidConfig = errors.New("invalid presence config")
	// ErrServiceStopped сервис уже остановлен
	ErrServiceStopped = errors.New("presence service stopped")
)

// Transport транспорт сервиса: отправка запросов и входящие запросы
type Transport interface {
	refresh.Sender
	OnRequest(method sip.RequestMethod, h transport.RequestHandler)
}

// Config параметры сервиса
type Config struct {
	// Identity собственная публичная identity
	Identity sip.Uri
	// RLSList URI списка контактов на RLS
	RLSList          sip.Uri
	PublishExpires   int
	SubscribeExpires int
	// PermanentState публикация без снятия при остановке
	PermanentState bool
	// CheckInterval период Check, 0 отключает фоновую проверку
	CheckInterval time.Duration
	Timeout       time.Duration
	Capabilities  pidf.Capabilities

	// Username и Password для digest, у каждого потока свой агент
	Username string
	Password string
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	switch {
	case c.Identity.Host == "":
		return fmt.Errorf("%w: empty identity", ErrInvalidConfig)
	case c.RLSList.Host == "":
		return fmt.Errorf("%w: empty rls list uri", ErrInvalidConfig)
	case c.PublishExpires <= 0 || c.SubscribeExpires <= 0:
		return fmt.Errorf("%w: expires must be positive", ErrInvalidConfig)
	case c.CheckInterval < 0:
		return fmt.Errorf("%w: negative check interval", ErrInvalidConfig)
	}
	return nil
}

type options struct {
	logger      *slog.Logger
	metrics     *metrics.MetricsCollector
	registry    store.Registry
	clock       refresh.Clock
	eventBuffer int
}

// Option опция сервиса
type Option func(*options)

// WithLogger задает логгер
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics задает сборщик метрик
func WithMetrics(mc *metrics.MetricsCollector) Option {
	return func(o *options) { o.metrics = mc }
}

// WithRegistry задает реестр состояния
func WithRegistry(r store.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithClock подменяет часы потоков
func WithClock(c refresh.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithEventBuffer размер буфера канала событий
func WithEventBuffer(n int) Option {
	return func(o *options) { o.eventBuffer = n }
}

// Service сервис присутствия
type Service struct {
	cfg      Config
	tr       Transport
	factory  *message.Factory
	xdm      XDM
	registry store.Registry
	metrics  *metrics.MetricsCollector
	logger   *slog.Logger
	clock    refresh.Clock
	events   *Dispatcher

	publish  *refresh.PublishManager
	presence *refresh.SubscribeManager
	winfo    *refresh.SubscribeManager

	mu      sync.Mutex
	doc     pidf.Document
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService создает сервис. x может быть nil, тогда изменения списка
// контактов не переносятся на XDMS.
func NewService(cfg Config, tr Transport, factory *message.Factory, x XDM, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tr == nil || factory == nil {
		return nil, fmt.Errorf("%w: transport and factory required", ErrInvalidConfig)
	}

	o := options{logger: slog.Default(), registry: store.NewMemory()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		cfg:      cfg,
		tr:       tr,
		factory:  factory,
		xdm:      x,
		registry: o.registry,
		metrics:  o.metrics,
		logger:   o.logger.With(slog.String("component", "presence")),
		clock:    o.clock,
	}
	s.events = NewDispatcher(o.eventBuffer, s.logger)

	identity := cfg.Identity
	caps := cfg.Capabilities
	s.doc = pidf.Document{Entity: identity.String(), Capabilities: &caps}

	var err error
	s.publish, err = refresh.NewPublishManager(refresh.Config{
		Target:         cfg.Identity,
		Identity:       cfg.Identity,
		DefaultExpires: cfg.PublishExpires,
		PermanentState: cfg.PermanentState,
		Timeout:        cfg.Timeout,
	}, tr, factory, s.flowOptions(o)...)
	if err != nil {
		return nil, err
	}

	s.presence, err = refresh.NewPresenceSubscribeManager(refresh.Config{
		Target:         cfg.RLSList,
		Identity:       cfg.Identity,
		DefaultExpires: cfg.SubscribeExpires,
		Timeout:        cfg.Timeout,
	}, tr, factory, s.flowOptions(o)...)
	if err != nil {
		return nil, err
	}

	s.winfo, err = refresh.NewWinfoSubscribeManager(refresh.Config{
		Target:         cfg.Identity,
		Identity:       cfg.Identity,
		DefaultExpires: cfg.SubscribeExpires,
		Timeout:        cfg.Timeout,
	}, tr, factory, s.flowOptions(o)...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// flowOptions опции одного потока: агент создается на каждый поток
func (s *Service) flowOptions(o options) []refresh.Option {
	opts := []refresh.Option{
		refresh.WithLogger(o.logger),
		refresh.WithMetrics(o.metrics),
		refresh.WithRegistry(o.registry),
		refresh.WithClock(o.clock),
	}
	if s.cfg.Username != "" {
		opts = append(opts, refresh.WithAgent(auth.NewAgent(s.cfg.Username, s.cfg.Password)))
	}
	return opts
}

// Start регистрирует обработчики NOTIFY и OPTIONS, восстанавливает последний
// опубликованный документ, публикует его и подписывается на presence и winfo.
// Ошибки потоков не мешают запуску остальных и возвращаются вместе.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.tr.OnRequest(sip.NOTIFY, s.handleNotify)
	s.tr.OnRequest(sip.OPTIONS, s.handleOptions)
	s.restoreLocked(ctx)
	doc := s.doc
	s.mu.Unlock()

	var errs []error
	if err := s.publishDocument(ctx, doc); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}
	if err := s.presence.Subscribe(ctx); err != nil {
		errs = append(errs, fmt.Errorf("subscribe presence: %w", err))
	}
	if err := s.winfo.Subscribe(ctx); err != nil {
		errs = append(errs, fmt.Errorf("subscribe winfo: %w", err))
	}

	if s.cfg.CheckInterval > 0 {
		loopCtx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		s.wg.Add(1)
		go s.checkLoop(loopCtx)
	}

	s.logger.Info("presence service started", slog.Int("failed_flows", len(errs)))
	return errors.Join(errs...)
}

// restoreLocked берет последний опубликованный документ из реестра
func (s *Service) restoreLocked(ctx context.Context) {
	data, ok, err := s.registry.Get(ctx, store.KeyLastDocument)
	if err != nil {
		s.logger.Warn("failed to read last document", slog.Any("error", err))
		return
	}
	if !ok || data == "" {
		return
	}
	doc, err := pidf.ParseDocument([]byte(data))
	if err != nil {
		s.logger.Warn("stored document is malformed", slog.Any("error", err))
		return
	}
	doc.Entity = s.doc.Entity
	if doc.Capabilities == nil && !s.cfg.PermanentState {
		doc.Capabilities = s.doc.Capabilities
	}
	s.doc = *doc
	s.logger.Info("last presence document restored")
}

func (s *Service) checkLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check переподписывает неактивные потоки SUBSCRIBE.
// Так сервис восстанавливается после пропущенного обновления.
// До Start и после Stop ничего не делает.
func (s *Service) Check(ctx context.Context) {
	s.mu.Lock()
	running := s.started && !s.stopped
	s.mu.Unlock()
	if !running {
		return
	}

	for _, flow := range []*refresh.SubscribeManager{s.presence, s.winfo} {
		if flow.IsActive() {
			continue
		}
		s.logger.Info("subscription inactive, resubscribing", slog.String("flow", flow.Name()))
		if err := flow.Subscribe(ctx); err != nil {
			s.logger.Warn("resubscribe failed", slog.String("flow", flow.Name()), slog.Any("error", err))
		}
	}
}

// Stop останавливает фоновую проверку и завершает все потоки.
// После Stop сервис не запускается повторно.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.winfo.Terminate(ctx)
	s.presence.Terminate(ctx)
	s.publish.Terminate(ctx)
	s.events.Close()
	s.logger.Info("presence service stopped")
}

// Events канал событий presence. Каждый вызов регистрирует нового слушателя.
func (s *Service) Events() <-chan Event {
	return s.events.Subscribe()
}

// Document текущий собственный документ
func (s *Service) Document() pidf.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// SetCapabilities публикует новый набор возможностей
func (s *Service) SetCapabilities(ctx context.Context, caps pidf.Capabilities) error {
	return s.update(ctx, func(d *pidf.Document) { d.Capabilities = &caps })
}

// SetPerson публикует блок person, nil удаляет его
func (s *Service) SetPerson(ctx context.Context, person *pidf.Person) error {
	return s.update(ctx, func(d *pidf.Document) { d.Person = person })
}

// SetGeoloc публикует геолокацию, nil удаляет ее
func (s *Service) SetGeoloc(ctx context.Context, g *pidf.Geoloc) error {
	return s.update(ctx, func(d *pidf.Document) { d.Geoloc = g })
}

// SetIcon загружает иконку на XDMS и публикует ссылку на нее
func (s *Service) SetIcon(ctx context.Context, icon xdm.Icon) error {
	if s.xdm == nil {
		return fmt.Errorf("%w: xdm not configured", ErrXDMRequestFailed)
	}
	resp, err := s.xdm.UploadEndUserIcon(ctx, icon)
	if err != nil {
		return fmt.Errorf("upload icon: %w", err)
	}
	if !resp.IsSuccessful() {
		return fmt.Errorf("%w: upload icon: status %d", ErrXDMRequestFailed, statusOf(resp))
	}

	ref := &pidf.Icon{
		URL:         resp.Header("Location"),
		ETag:        resp.ETag(),
		ContentType: icon.ContentType,
		Size:        len(icon.Data),
	}
	return s.update(ctx, func(d *pidf.Document) {
		person := pidf.Person{}
		if d.Person != nil {
			person = *d.Person
		}
		person.Icon = ref
		d.Person = &person
	})
}

// DeleteIcon удаляет иконку с XDMS и из документа
func (s *Service) DeleteIcon(ctx context.Context) error {
	if s.xdm == nil {
		return fmt.Errorf("%w: xdm not configured", ErrXDMRequestFailed)
	}
	resp, err := s.xdm.DeleteEndUserIcon(ctx)
	if err != nil {
		return fmt.Errorf("delete icon: %w", err)
	}
	if !resp.IsSuccessful() && !resp.IsNotFound() {
		return fmt.Errorf("%w: delete icon: status %d", ErrXDMRequestFailed, statusOf(resp))
	}
	return s.update(ctx, func(d *pidf.Document) {
		if d.Person == nil {
			return
		}
		person := *d.Person
		person.Icon = nil
		d.Person = &person
	})
}

func (s *Service) update(ctx context.Context, fn func(*pidf.Document)) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	fn(&s.doc)
	doc := s.doc
	s.mu.Unlock()
	return s.publishDocument(ctx, doc)
}

func (s *Service) publishDocument(ctx context.Context, doc pidf.Document) error {
	doc.Timestamp = s.now()
	body, err := pidf.BuildDocument(doc)
	if err != nil {
		return err
	}
	return s.publish.Publish(ctx, dialog.Content{ContentType: message.ContentTypePIDF, Data: body})
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// FlowStatus состояние одного потока
type FlowStatus struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Active      bool      `json:"active"`
	Expires     int       `json:"expires"`
	NextRefresh time.Time `json:"next_refresh,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// Status состояние всех потоков сервиса
func (s *Service) Status() []FlowStatus {
	flows := []*refresh.Refresher{s.publish.Refresher, s.presence.Refresher, s.winfo.Refresher}
	out := make([]FlowStatus, 0, len(flows))
	for _, f := range flows {
		st := FlowStatus{
			Name:        f.Name(),
			State:       f.State(),
			Active:      f.IsActive(),
			Expires:     f.Expires(),
			NextRefresh: f.NextRefresh(),
		}
		if err := f.LastError(); err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}
