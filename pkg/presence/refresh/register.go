package refresh

import (
	"context"
	"log/slog"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/message"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
)

// RegisterManager поток REGISTER
type RegisterManager struct {
	*Refresher
	s *registerStrategy
}

// NewRegisterManager создает поток регистрации. Contact несет featureTags.
func NewRegisterManager(cfg Config, sender Sender, factory *message.Factory, featureTags []string, opts ...Option) (*RegisterManager, error) {
	if cfg.Name == "" {
		cfg.Name = "register"
	}
	if cfg.MinExpiresKey == "" {
		cfg.MinExpiresKey = store.KeyRegisterMinExpire
	}

	o := newOptions(opts)
	s := &registerStrategy{
		factory:     factory,
		featureTags: featureTags,
		logger:      o.logger.With(slog.String("component", "refresh"), slog.String("flow", cfg.Name)),
	}
	r, err := NewRefresher(cfg, sender, s, opts...)
	if err != nil {
		return nil, err
	}
	return &RegisterManager{Refresher: r, s: s}, nil
}

// Register регистрирует UA
func (m *RegisterManager) Register(ctx context.Context) error {
	return m.Start(ctx)
}

// Unregister снимает регистрацию (Expires: 0)
func (m *RegisterManager) Unregister(ctx context.Context) error {
	return m.Stop(ctx)
}

// Restart перерегистрация по сигналу транспорта (403 без Warning)
func (m *RegisterManager) Restart() {
	m.s.logger.Info("re-registration requested")
	if err := m.Start(context.Background()); err != nil {
		m.s.logger.Error("re-registration failed", slog.Any("error", err))
	}
}

type registerStrategy struct {
	factory     *message.Factory
	featureTags []string
	logger      *slog.Logger
}

func (s *registerStrategy) BuildInitial(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.factory.Register(p, expires, s.featureTags)
}

func (s *registerStrategy) BuildRefresh(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.factory.Register(p, expires, s.featureTags)
}

func (s *registerStrategy) Classify(tc *transport.TransactionContext) Outcome {
	return classifyUnconditional(tc)
}

func (s *registerStrategy) OnSuccess(_ *transport.TransactionContext, expires int) {
	if expires == 0 {
		s.logger.Info("unregistered")
		return
	}
	s.logger.Info("registered", slog.Int("expires", expires))
}

func (s *registerStrategy) OnFailure(err error) {
	s.logger.Error("registration failed", slog.Any("error", err))
}
