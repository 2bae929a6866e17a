// Package refresh реализует периодически обновляемые потоки SIP
// (PUBLISH, SUBSCRIBE, REGISTER) как один конечный автомат,
// параметризованный стратегией потока.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/looplab/fsm"

	"github.com/arzzra/ims_phone/pkg/metrics"
	"github.com/arzzra/ims_phone/pkg/sip/auth"
	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
)

// Состояния потока
const (
	StateIdle       = "idle"
	StateRefreshing = "refreshing"
	StateActive     = "active"
	StateError      = "error"
)

const (
	eventSend    = "send"
	eventConfirm = "confirm"
	eventFinish  = "finish"
	eventFail    = "fail"
	eventReset   = "reset"
)

// Sender транспорт потока (transport.Manager)
type Sender interface {
	SendAndWait(ctx context.Context, req *sip.Request, timeout time.Duration) (*transport.TransactionContext, error)
	GenerateCallID() (string, error)
	RouteSet() ([]sip.Uri, error)
}

// Config параметры потока
type Config struct {
	// Name имя потока в логах и метриках
	Name string
	// Target Request-URI
	Target sip.Uri
	// Remote адрес в To, по умолчанию Target
	Remote sip.Uri
	// Identity адрес в From
	Identity       sip.Uri
	DefaultExpires int
	// MinExpiresKey ключ реестра для нижней границы срока (Min-Expires из 423)
	MinExpiresKey string
	// PermanentState не отправлять запрос с нулевым сроком при Terminate
	PermanentState bool
	Timeout        time.Duration
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidConfig)
	case c.Target.Host == "":
		return fmt.Errorf("%w: %s: empty target", ErrInvalidConfig, c.Name)
	case c.Identity.Host == "":
		return fmt.Errorf("%w: %s: empty identity", ErrInvalidConfig, c.Name)
	case c.DefaultExpires < 0:
		return fmt.Errorf("%w: %s: negative expires", ErrInvalidConfig, c.Name)
	}
	return nil
}

type options struct {
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.MetricsCollector
	registry store.Registry
	agent    *auth.Agent
}

// Option опция потока
type Option func(*options)

// WithClock подменяет часы (тесты)
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

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

// WithRegistry задает реестр для Min-Expires и entity-tag
func WithRegistry(r store.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithAgent задает агента аутентификации. Агент принадлежит одному потоку.
func WithAgent(a *auth.Agent) Option {
	return func(o *options) { o.agent = a }
}

func newOptions(opts []Option) options {
	o := options{
		clock:    realClock{},
		logger:   slog.Default(),
		registry: store.NewMemory(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type buildFunc func(p *dialog.DialogPath, expires int) (*sip.Request, error)

// Refresher общий автомат обновления.
//
// Публичные методы одного потока исполняются по очереди под mu.
// Срабатывание таймера после Terminate или после перевзвода ничего не делает.
type Refresher struct {
	cfg      Config
	strategy Strategy
	sender   Sender
	opts     options
	logger   *slog.Logger

	mu           sync.Mutex
	sm           *fsm.FSM
	path         *dialog.DialogPath
	floor        int
	expirePeriod int
	confirmed    int
	timer        Timer
	generation   uint64
	nextRefresh  time.Time
	lastErr      error

	current    atomic.Pointer[dialog.DialogPath]
	active     atomic.Bool
	terminated atomic.Bool

	lifeMu    sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
}

// NewRefresher создает поток. Нижняя граница срока читается из реестра.
func NewRefresher(cfg Config, sender Sender, strategy Strategy, opts ...Option) (*Refresher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sender == nil || strategy == nil {
		return nil, fmt.Errorf("%w: %s: sender and strategy required", ErrInvalidConfig, cfg.Name)
	}

	o := newOptions(opts)
	r := &Refresher{
		cfg:      cfg,
		strategy: strategy,
		sender:   sender,
		opts:     o,
		logger:   o.logger.With(slog.String("component", "refresh"), slog.String("flow", cfg.Name)),
	}
	r.runCtx, r.runCancel = context.WithCancel(context.Background())

	r.floor = r.loadFloor()
	r.expirePeriod = max(cfg.DefaultExpires, r.floor)

	r.sm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventSend, Src: []string{StateIdle, StateActive, StateError}, Dst: StateRefreshing},
			{Name: eventConfirm, Src: []string{StateRefreshing}, Dst: StateActive},
			{Name: eventFinish, Src: []string{StateRefreshing, StateActive}, Dst: StateIdle},
			{Name: eventFail, Src: []string{StateRefreshing, StateActive}, Dst: StateError},
			{Name: eventReset, Src: []string{StateError}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				r.handleStateChange(e)
			},
		},
	)
	return r, nil
}

func (r *Refresher) loadFloor() int {
	if r.cfg.MinExpiresKey == "" {
		return 0
	}
	floor, err := store.GetInt(context.Background(), r.opts.registry, r.cfg.MinExpiresKey)
	if err != nil {
		r.logger.Warn("failed to read min expires", slog.Any("error", err))
		return 0
	}
	return floor
}

func (r *Refresher) handleStateChange(e *fsm.Event) {
	r.opts.metrics.StateTransition(r.cfg.Name, e.Src, e.Dst)
	r.logger.Debug("state changed", slog.String("from", e.Src), slog.String("to", e.Dst))
}

func (r *Refresher) transition(event string) {
	if err := r.sm.Event(context.Background(), event); err != nil {
		r.logger.Debug("transition skipped",
			slog.String("event", event),
			slog.String("state", r.sm.Current()),
			slog.Any("error", err))
	}
}

// Start начинает цикл в свежем диалоге с текущим сроком.
// Ошибка означает неуспешный цикл, поток при этом в состоянии idle.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lifeMu.Lock()
	if r.runCtx.Err() != nil {
		r.runCtx, r.runCancel = context.WithCancel(context.Background())
	}
	r.lifeMu.Unlock()
	r.terminated.Store(false)

	return r.cycleLocked(ctx, r.strategy.BuildInitial)
}

// Stop отправляет запрос с нулевым сроком в текущем диалоге и переводит поток в idle
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarmLocked()
	if r.path == nil || !r.active.Load() {
		r.setActive(false)
		r.transition(eventFinish)
		return nil
	}

	ctx, cancel := r.bind(ctx)
	defer cancel()
	r.transition(eventSend)
	return r.runLocked(ctx, r.path, 0, r.strategy.BuildRefresh)
}

// Terminate останавливает поток. Без режима permanent state активный поток
// отправляет один запрос с нулевым сроком, ошибки которого игнорируются.
// После возврата таймер уже не отправит ни одного запроса.
func (r *Refresher) Terminate(ctx context.Context) {
	r.terminated.Store(true)
	r.lifeMu.Lock()
	r.runCancel()
	r.lifeMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarmLocked()
	if r.active.Load() && !r.cfg.PermanentState && r.path != nil {
		r.transition(eventSend)
		if err := r.runLocked(ctx, r.path, 0, r.strategy.BuildRefresh); err != nil {
			r.logger.Debug("final zero-expiry request failed", slog.Any("error", err))
		}
	}
	r.setActive(false)
	r.transition(eventFinish)
}

// MarkInactive снимает признак активности без отправки запросов
// (например, NOTIFY с Subscription-State: terminated)
func (r *Refresher) MarkInactive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disarmLocked()
	r.setActive(false)
	r.transition(eventFinish)
}

func (r *Refresher) onTimer(gen uint64) {
	if r.terminated.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated.Load() || gen != r.generation {
		r.logger.Debug("stale refresh timer ignored")
		return
	}
	r.timer = nil
	_ = r.cycleLocked(context.Background(), r.strategy.BuildRefresh)
}

// bind отменяет ctx вместе с потоком
func (r *Refresher) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	r.lifeMu.Lock()
	run := r.runCtx
	r.lifeMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(run, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (r *Refresher) cycleLocked(ctx context.Context, build buildFunc) error {
	r.disarmLocked()
	r.transition(eventSend)

	p, err := r.newPathLocked()
	if err != nil {
		return r.failLocked(err)
	}

	ctx, cancel := r.bind(ctx)
	defer cancel()
	return r.runLocked(ctx, p, r.expirePeriod, build)
}

// newPathLocked новый диалог: новый Call-ID, CSeq начнется с 1
func (r *Refresher) newPathLocked() (*dialog.DialogPath, error) {
	callID, err := r.sender.GenerateCallID()
	if err != nil {
		return nil, err
	}
	routes, err := r.sender.RouteSet()
	if err != nil {
		return nil, err
	}
	remote := r.cfg.Remote
	if remote.Host == "" {
		remote = r.cfg.Target
	}
	p, err := dialog.NewDialogPath(callID, r.cfg.Target, r.cfg.Identity, remote, 0, routes)
	if err != nil {
		return nil, err
	}
	r.path = p
	r.current.Store(p)
	return p, nil
}

// runLocked отправляет запрос и обрабатывает ответы до финального исхода цикла.
// Challenge, 412 и 423 повторяются в том же диалоге со следующим CSeq,
// каждый не больше одного раза за цикл.
func (r *Refresher) runLocked(ctx context.Context, p *dialog.DialogPath, expires int, build buildFunc) error {
	var challenged, conditionReset, intervalRaised bool

	for {
		p.IncrementCSeq()
		req, err := build(p, expires)
		if err != nil {
			return r.failLocked(err)
		}
		if r.opts.agent != nil && r.opts.agent.HasChallenge() {
			if err := r.opts.agent.StampCredentials(req); err != nil {
				return r.failLocked(err)
			}
		}

		tc, err := r.sender.SendAndWait(ctx, req, r.cfg.Timeout)
		if err != nil {
			return r.failLocked(err)
		}

		switch outcome := r.strategy.Classify(tc); outcome {
		case OutcomeSuccess:
			return r.succeedLocked(p, tc, expires)

		case OutcomeChallenge:
			if challenged || r.opts.agent == nil {
				return r.failLocked(fmt.Errorf("%w: %d %s", ErrAuthenticationRequired, tc.StatusCode(), tc.ReasonPhrase()))
			}
			challenged = true
			if err := r.opts.agent.ReadChallenge(tc.Response); err != nil {
				return r.failLocked(fmt.Errorf("%w: %v", ErrAuthenticationRequired, err))
			}
			r.logger.Debug("challenge received, retrying with credentials", slog.Int("status", tc.StatusCode()))

		case OutcomeConditionalFailed:
			if conditionReset {
				return r.failLocked(ErrConditionalRequestFailed)
			}
			conditionReset = true
			if cs, ok := r.strategy.(ConditionalStrategy); ok {
				cs.ResetCondition()
			}
			r.logger.Info("conditional request failed, retrying without entity-tag")

		case OutcomeIntervalTooBrief:
			minExpires, ok := tc.MinExpires()
			if !ok {
				return r.failLocked(fmt.Errorf("%w: 423 without Min-Expires", ErrUnexpectedFailure))
			}
			if intervalRaised {
				return r.failLocked(ErrIntervalTooBrief)
			}
			intervalRaised = true
			r.raiseFloorLocked(ctx, minExpires)
			expires = minExpires

		default:
			return r.failLocked(unexpected(tc))
		}
	}
}

func (r *Refresher) succeedLocked(p *dialog.DialogPath, tc *transport.TransactionContext, requested int) error {
	confirmed := requested
	if requested > 0 {
		if v, ok := tc.Expires(); ok {
			confirmed = v
		}
	}

	if ds, ok := r.strategy.(DialogStrategy); ok && ds.EstablishesDialog() {
		if err := p.UpdateFromResponse(tc.Response); err != nil {
			r.logger.Warn("failed to update dialog from response", slog.Any("error", err))
		}
	}
	r.strategy.OnSuccess(tc, confirmed)
	r.lastErr = nil
	r.confirmed = confirmed

	if requested == 0 || confirmed == 0 {
		r.setActive(false)
		r.transition(eventFinish)
		return nil
	}

	r.setActive(true)
	r.armLocked(confirmed)
	r.transition(eventConfirm)
	r.logger.Debug("refresh confirmed",
		slog.Int("expires", confirmed),
		slog.Time("next_refresh", r.nextRefresh))
	return nil
}

func (r *Refresher) failLocked(err error) error {
	r.disarmLocked()
	r.setActive(false)
	r.lastErr = err
	r.transition(eventFail)
	r.transition(eventReset)
	r.strategy.OnFailure(err)
	r.logger.Warn("refresh cycle failed", slog.Any("error", err))
	return err
}

func (r *Refresher) raiseFloorLocked(ctx context.Context, minExpires int) {
	r.floor = minExpires
	r.expirePeriod = max(r.cfg.DefaultExpires, minExpires)
	r.logger.Info("interval too brief, raising floor", slog.Int("min_expires", minExpires))

	if r.cfg.MinExpiresKey == "" {
		return
	}
	if err := store.SetInt(context.WithoutCancel(ctx), r.opts.registry, r.cfg.MinExpiresKey, minExpires); err != nil {
		r.logger.Warn("failed to persist min expires", slog.Any("error", err))
	}
}

func (r *Refresher) armLocked(expires int) {
	r.disarmLocked()
	delay := RefreshDelay(expires)
	gen := r.generation
	r.nextRefresh = r.opts.clock.Now().Add(delay)
	r.timer = r.opts.clock.AfterFunc(delay, func() { r.onTimer(gen) })
}

func (r *Refresher) disarmLocked() {
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.nextRefresh = time.Time{}
}

func (r *Refresher) setActive(active bool) {
	r.active.Store(active)
	r.opts.metrics.FlowActive(r.cfg.Name, active)
}

func unexpected(tc *transport.TransactionContext) error {
	if tc == nil || tc.IsTimeout() {
		return fmt.Errorf("%w: no response", ErrUnexpectedFailure)
	}
	return fmt.Errorf("%w: %d %s", ErrUnexpectedFailure, tc.StatusCode(), tc.ReasonPhrase())
}

// Name имя потока
func (r *Refresher) Name() string { return r.cfg.Name }

// State текущее состояние автомата
func (r *Refresher) State() string { return r.sm.Current() }

// IsActive true, пока подтвержденный срок не истек и таймер взведен
func (r *Refresher) IsActive() bool { return r.active.Load() }

// Path текущий диалог потока или nil
func (r *Refresher) Path() *dialog.DialogPath { return r.current.Load() }

// ExpirePeriod срок, запрашиваемый в следующем цикле
func (r *Refresher) ExpirePeriod() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expirePeriod
}

// Expires срок, подтвержденный сервером в последнем цикле
func (r *Refresher) Expires() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed
}

// NextRefresh момент следующего обновления, нулевой если таймер не взведен
func (r *Refresher) NextRefresh() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextRefresh
}

// LastError ошибка последнего цикла
func (r *Refresher) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
