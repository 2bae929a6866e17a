// imsclient регистрируется в IMS, публикует собственный presence и держит
// подписки на список контактов и watcher info.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/emiago/sipgo/sip"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/ims_phone/internal/config"
	"github.com/arzzra/ims_phone/internal/log"
	"github.com/arzzra/ims_phone/pkg/metrics"
	"github.com/arzzra/ims_phone/pkg/presence"
	"github.com/arzzra/ims_phone/pkg/presence/refresh"
	"github.com/arzzra/ims_phone/pkg/sip/auth"
	"github.com/arzzra/ims_phone/pkg/sip/message"
	"github.com/arzzra/ims_phone/pkg/sip/transport"
	"github.com/arzzra/ims_phone/pkg/store"
	"github.com/arzzra/ims_phone/pkg/xdm"
)

func main() {
	if err := run(); err != nil {
		slog.Error("imsclient failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	logger, err := log.New(os.Stdout, cfg.Log.Format, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Реестр Min-Expires, entity-tag и последнего документа
	if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	registry, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()
	if err := registry.Ping(ctx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewMetricsCollector(metrics.DefaultMetricsConfig(), promRegistry)

	stackCfg := cfg.StackConfig()
	if stackCfg.ProxyHost == "" {
		resolver := &transport.Resolver{NameServer: cfg.SIP.NameServer}
		addr, err := resolver.ResolveProxy(ctx, cfg.SIP.Domain, cfg.SIP.Transport)
		if err != nil {
			return fmt.Errorf("resolve proxy: %w", err)
		}
		stackCfg.ProxyHost, stackCfg.ProxyPort = addr.Host, addr.Port
		logger.Info("outbound proxy resolved", slog.String("proxy", addr.String()))
	}

	mgr := transport.NewManager(
		func() transport.Stack { return transport.NewSipgoStack(logger) },
		transport.WithLogger(logger),
		transport.WithMetrics(mc),
	)
	if err := mgr.InitStack(ctx, stackCfg); err != nil {
		return err
	}
	defer mgr.CloseStack()

	factory := message.NewFactory(mgr, message.WithUserAgent(cfg.SIP.UserAgent))
	identity := cfg.Identity()
	caps := cfg.Capabilities()

	featureTags := cfg.SIP.FeatureTags
	if len(featureTags) == 0 {
		featureTags = presence.FeatureTags(caps)
	}
	flowOpts := []refresh.Option{
		refresh.WithLogger(logger),
		refresh.WithMetrics(mc),
		refresh.WithRegistry(registry),
	}
	reg, err := refresh.NewRegisterManager(refresh.Config{
		Target:         sipDomain(cfg.SIP.Domain),
		Identity:       identity,
		DefaultExpires: cfg.SIP.RegisterExpires,
		Timeout:        cfg.SIP.TxTimeout,
	}, mgr, factory, featureTags, append(flowOpts, refresh.WithAgent(auth.NewAgent(cfg.SIP.User, cfg.SIP.Password)))...)
	if err != nil {
		return err
	}
	mgr.SetReRegistrationTrigger(reg.Restart)
	if err := reg.Register(ctx); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	var xdmClient presence.XDM
	if cfg.XDM.RootURL != "" {
		c, err := xdm.NewClient(xdm.Config{
			RootURL:   cfg.XDM.RootURL,
			XUI:       identity.String(),
			User:      cfg.XDM.User,
			Password:  cfg.XDM.Password,
			Timeout:   cfg.XDM.Timeout,
			UserAgent: cfg.SIP.UserAgent,
		}, xdm.WithLogger(logger))
		if err != nil {
			return err
		}
		xdmClient = c
	}

	rls, err := cfg.RLS()
	if err != nil {
		return fmt.Errorf("rls list uri: %w", err)
	}
	svc, err := presence.NewService(presence.Config{
		Identity:         identity,
		RLSList:          rls,
		PublishExpires:   cfg.Presence.PublishExpires,
		SubscribeExpires: cfg.Presence.SubscribeExpires,
		PermanentState:   cfg.Presence.PermanentState,
		CheckInterval:    cfg.Presence.CheckInterval,
		Timeout:          cfg.SIP.TxTimeout,
		Capabilities:     caps,
		Username:         cfg.SIP.User,
		Password:         cfg.SIP.Password,
	}, mgr, factory, xdmClient,
		presence.WithLogger(logger),
		presence.WithMetrics(mc),
		presence.WithRegistry(registry),
	)
	if err != nil {
		return err
	}
	go logEvents(logger, svc.Events())

	// Ошибки отдельных потоков не фатальны, Check переподпишет
	if err := svc.Start(ctx); err != nil {
		logger.Warn("presence started with failed flows", slog.Any("error", err))
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	r.Get("/status", statusHandler(reg, svc))

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("debug http listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug http failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	svc.Stop(shutdownCtx)
	if err := reg.Unregister(shutdownCtx); err != nil {
		logger.Warn("unregister failed", slog.Any("error", err))
	}
	return nil
}

// sipDomain Request-URI регистрации
func sipDomain(domain string) sip.Uri {
	return sip.Uri{Scheme: "sip", Host: domain}
}

func statusHandler(reg *refresh.RegisterManager, svc *presence.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		flows := append([]presence.FlowStatus{{
			Name:        reg.Name(),
			State:       reg.State(),
			Active:      reg.IsActive(),
			Expires:     reg.Expires(),
			NextRefresh: reg.NextRefresh(),
		}}, svc.Status()...)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"flows": flows}); err != nil {
			slog.Error("encode status", slog.Any("error", err))
		}
	}
}

func logEvents(logger *slog.Logger, events <-chan presence.Event) {
	for ev := range events {
		switch ev := ev.(type) {
		case presence.ResourceStateChanged:
			logger.Info("resource state", slog.String("uri", ev.Resource.URI), slog.String("state", ev.Resource.State()))
		case presence.PresenceInfoChanged:
			logger.Info("presence info", slog.String("contact", ev.Contact))
		case presence.WatcherChanged:
			logger.Info("watcher", slog.String("uri", ev.Watcher.URI), slog.String("status", ev.Watcher.Status))
		}
	}
}
