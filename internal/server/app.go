// Package server wires the gophauth components together and runs the gRPC
// endpoint, the metrics endpoint and the retention sweeper until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/email"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/storage"
	"github.com/dmitrijs2005/gophauth/internal/server/sweeper"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	registry *prometheus.Registry

	authService   *services.AuthService
	avatarService *services.AvatarService
	sweeper       *sweeper.Sweeper
}

// newObjectStore is a seam for tests.
var newObjectStore = func(ctx context.Context, cfg storage.S3Config) (storage.ObjectStore, error) {
	return storage.NewS3Store(ctx, cfg)
}

func codecKeys(c *config.Config) map[auth.Variant]auth.Key {
	return map[auth.Variant]auth.Key{
		auth.VariantAccess:   {Secret: []byte(c.AccessTokenSecret), Lifetime: c.AccessTokenValidityDuration},
		auth.VariantRefresh:  {Secret: []byte(c.RefreshTokenSecret), Lifetime: c.RefreshTokenValidityDuration},
		auth.VariantActivate: {Secret: []byte(c.ActivateTokenSecret), Lifetime: c.ActionTokenValidityDuration},
		auth.VariantForgot:   {Secret: []byte(c.ForgotTokenSecret), Lifetime: c.ActionTokenValidityDuration},
	}
}

func newMailer(c *config.Config, logger logging.Logger) email.Sender {
	if c.SMTPHost == "" {
		return email.NewLogSender(logger, c.FrontURL)
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		User:     c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
		Timeout:  c.SMTPTimeout,
		FrontURL: c.FrontURL,
	})
}

// NewApp connects the store, applies migrations and builds every service.
// Log output goes to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(w, c.LogLevel)

	repos, err := repomanager.New(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	objects, err := newObjectStore(ctx, storage.S3Config{
		Region:       c.S3Region,
		User:         c.S3RootUser,
		Password:     c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	authService := services.NewAuthService(
		repos,
		auth.NewHasher(c.BcryptCost),
		auth.NewCodec(codecKeys(c)),
		newMailer(c, logger),
		m,
		logger,
		services.AuthOptions{
			AllowPendingLogin:    c.AllowPendingLogin,
			PasswordHistoryDepth: c.PasswordHistoryDepth,
			EmailTimeout:         c.SMTPTimeout,
		},
	)

	sw := sweeper.New(repos, sweeper.Options{
		TokenRetention:        c.TokenRetention,
		TokenSweepInterval:    c.TokenSweepInterval,
		PasswordRetention:     c.PasswordRetention,
		PasswordSweepInterval: c.PasswordSweepInterval,
		ActionTokenTTL:        c.ActionTokenValidityDuration,
	}, m, logger)

	return &App{
		config:        c,
		logger:        logger,
		repos:         repos,
		registry:      registry,
		authService:   authService,
		avatarService: services.NewAvatarService(repos, objects, logger),
		sweeper:       sw,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.avatarService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.registry))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "metrics server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or a
// server fails, then releases the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.RunOnce(ctx)
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return app.repos.Close()
}
