package refresh

import (
	"context"
	"log/slog"
	"sync"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/ims_phone/pkg/sip/dialog"
	"github.com/arzzra/ims_phone/pkg/sip/message"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
)

// PublishManager поток PUBLISH пакета presence (RFC 3903)
type PublishManager struct {
	*Refresher
	s *publishStrategy
}

// NewPublishManager создает поток публикации.
// entity-tag прошлого запуска восстанавливается, пока его срок не истек.
func NewPublishManager(cfg Config, sender Sender, factory *message.Factory, opts ...Option) (*PublishManager, error) {
	if cfg.Name == "" {
		cfg.Name = "publish"
	}
	if cfg.MinExpiresKey == "" {
		cfg.MinExpiresKey = store.KeyPublishMinExpire
	}

	o := newOptions(opts)
	s := &publishStrategy{
		factory:  factory,
		registry: o.registry,
		clock:    o.clock,
		logger:   o.logger.With(slog.String("component", "refresh"), slog.String("flow", cfg.Name)),
	}
	s.restore(context.Background())

	r, err := NewRefresher(cfg, sender, s, opts...)
	if err != nil {
		return nil, err
	}
	return &PublishManager{Refresher: r, s: s}, nil
}

// Publish публикует документ в новом цикле. Сохраненный entity-tag
// делает публикацию условной.
func (m *PublishManager) Publish(ctx context.Context, content dialog.Content) error {
	m.s.setContent(content)
	return m.Start(ctx)
}

// Unpublish снимает публикацию (Expires: 0)
func (m *PublishManager) Unpublish(ctx context.Context) error {
	return m.Stop(ctx)
}

// ETag текущий entity-tag
func (m *PublishManager) ETag() string {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.etag
}

// Content последнее тело публикации
func (m *PublishManager) Content() dialog.Content {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.content
}

type publishStrategy struct {
	factory  *message.Factory
	registry store.Registry
	clock    Clock
	logger   *slog.Logger

	mu      sync.Mutex
	etag    string
	content dialog.Content
}

func (s *publishStrategy) restore(ctx context.Context) {
	etag, ok, err := s.registry.Get(ctx, store.KeyPublishETag)
	if err != nil || !ok || etag == "" {
		return
	}
	expiry, err := store.GetTime(ctx, s.registry, store.KeyPublishETagExpiry)
	if err != nil || !expiry.After(s.clock.Now()) {
		s.logger.Debug("stored entity-tag expired")
		return
	}
	s.etag = etag
}

func (s *publishStrategy) setContent(c dialog.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = c
}

func (s *publishStrategy) BuildInitial(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.build(p, expires)
}

func (s *publishStrategy) BuildRefresh(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	return s.build(p, expires)
}

func (s *publishStrategy) build(p *dialog.DialogPath, expires int) (*sip.Request, error) {
	s.mu.Lock()
	etag, content := s.etag, s.content
	s.mu.Unlock()

	if expires == 0 {
		content = dialog.Content{}
	} else if !content.IsEmpty() {
		p.SetLocalContent(content.ContentType, content.Data)
	}
	return s.factory.Publish(p, expires, etag, content)
}

func (s *publishStrategy) Classify(tc *transport.TransactionContext) Outcome {
	return ClassifyStatus(tc)
}

func (s *publishStrategy) OnSuccess(tc *transport.TransactionContext, expires int) {
	ctx := context.Background()
	etag, _ := tc.SIPETag()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expires == 0 {
		// публикация снята: токен ответа остается только в памяти
		s.etag = etag
		if etag != "" {
			s.logger.Debug("entity-tag returned on unpublish", slog.String("etag", etag))
		}
		s.forget(ctx)
		return
	}
	if etag != "" {
		s.etag = etag
	}
	if s.etag != "" {
		if err := s.registry.Set(ctx, store.KeyPublishETag, s.etag); err != nil {
			s.logger.Warn("failed to persist entity-tag", slog.Any("error", err))
		}
		expiry := s.clock.Now().Add(secondsToDuration(expires))
		if err := store.SetTime(ctx, s.registry, store.KeyPublishETagExpiry, expiry); err != nil {
			s.logger.Warn("failed to persist entity-tag expiry", slog.Any("error", err))
		}
	}
	if !s.content.IsEmpty() {
		if err := s.registry.Set(ctx, store.KeyLastDocument, string(s.content.Data)); err != nil {
			s.logger.Warn("failed to persist last document", slog.Any("error", err))
		}
	}
}

func (s *publishStrategy) OnFailure(err error) {
	s.logger.Debug("publish cycle failed", slog.Any("error", err))
}

func (s *publishStrategy) ResetCondition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etag = ""
	s.forget(context.Background())
}

func (s *publishStrategy) forget(ctx context.Context) {
	for _, key := range []string{store.KeyPublishETag, store.KeyPublishETagExpiry} {
		if err := s.registry.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete registry key", slog.String("key", key), slog.Any("error", err))
		}
	}
}
