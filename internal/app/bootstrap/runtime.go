package bootstrap

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/loginforge/authd/internal/adapters/cache"
	eventadapter "github.com/loginforge/authd/internal/adapters/events"
	grpcadapter "github.com/loginforge/authd/internal/adapters/grpc"
	httpadapter "github.com/loginforge/authd/internal/adapters/http"
	"github.com/loginforge/authd/internal/adapters/postgres"
	"github.com/loginforge/authd/internal/adapters/security"
	"github.com/loginforge/authd/internal/application"
	"github.com/loginforge/authd/internal/domain"
	"github.com/loginforge/authd/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	sweeper    *eventadapter.SessionSweeper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping auth service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	repos := postgres.NewRepositories(pool)

	tokens, err := security.NewTokenAuthority(tokenKinds(cfg))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token authority: %w", err)
	}

	cipherKey, err := hex.DecodeString(cfg.CipherKeyHex)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("decode cipher key: %w", err)
	}
	cipherIV, err := hex.DecodeString(cfg.CipherIVHex)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("decode cipher iv: %w", err)
	}
	cipher, err := security.NewAESCipher(cipherKey, cipherIV)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRoles:         cfg.DefaultRoles,
			SessionTTL:           cfg.SessionTTL,
			SessionAbsoluteTTL:   cfg.SessionAbsoluteTTL,
			FailedLoginThreshold: cfg.FailedThreshold,
			LockoutWindow:        cfg.LockoutWindow,
			OTPCodeLength:        cfg.OTPCodeLength,
		},
		Users:         repos.Users,
		Sessions:      repos.Sessions,
		LoginAttempts: repos.LoginAttempts,
		Outbox:        repos.Outbox,
		Idempotency:   repos.Idempotency,
		Lockouts:      cacheadapter.NewRedisLockoutStore(redisClient),
		Revocations:   cacheadapter.NewRedisSessionRevocationStore(redisClient),
		OTPIssuance:   cacheadapter.NewRedisOTPIssuanceStore(redisClient),
		Hasher:        security.NewBcryptHasher(cfg.BcryptCost),
		Tokens:        tokens,
		Cipher:        cipher,
		OTP:           security.NewTOTPProvider(cfg.TOTPIssuer),
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewAuthInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var publisher ports.EventPublisher = eventadapter.NewStreamPublisher(redisClient, cfg.OutboxStream)
	if !cfg.EventStreamEnabled {
		publisher = eventadapter.NewLogPublisher(logger)
	}
	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)
	sweeper := eventadapter.NewSessionSweeper(logger, repos.Sessions, cfg.SessionSweepInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		sweeper:    sweeper,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// tokenKinds maps the resolved config onto the authority's per-kind table.
func tokenKinds(cfg Config) map[domain.TokenKind]security.KindConfig {
	toKind := func(t TokenKindConfig) security.KindConfig {
		return security.KindConfig{
			Secret:   []byte(t.Secret),
			TTL:      t.TTL,
			Audience: t.Audience,
			Issuer:   t.Issuer,
		}
	}
	return map[domain.TokenKind]security.KindConfig{
		domain.TokenKindAccess:         toKind(cfg.AccessToken),
		domain.TokenKindRefresh:        toKind(cfg.RefreshToken),
		domain.TokenKindVerification:   toKind(cfg.VerificationToken),
		domain.TokenKindForgotPassword: toKind(cfg.ForgotPasswordToken),
		domain.TokenKindMfaAuthGate:    toKind(cfg.MfaGateToken),
		domain.TokenKindMfaOtp:         toKind(cfg.MfaOtpToken),
	}
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

// RunWorker runs the outbox publisher and the session sweeper until signalled.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("outbox worker started")
		errCh <- r.outbox.Run(ctx)
	}()
	go func() {
		r.logger.Info("session sweeper started")
		errCh <- r.sweeper.Run(ctx)
	}()

	err := <-errCh
	stop()
	<-errCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
