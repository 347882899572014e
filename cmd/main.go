package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lostfound/api/handler"
	apiMiddleware "lostfound/api/middleware"
	"lostfound/api/routes"
	"lostfound/config"
	"lostfound/internal/limiter"
	"lostfound/internal/mail"
	"lostfound/internal/repository"
	"lostfound/internal/service"
	"lostfound/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	resetPageRoute  = "/reset/complete-page/:token"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectionDb(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Fatal("database handle")
	}
	defer sqlDB.Close()

	transport := newMailTransport(cfg.Mail)
	verifyCtx, cancelVerify := context.WithTimeout(ctx, cfg.Mail.ConnectTimeout+cfg.Mail.HandshakeTimeout)
	if err := transport.Verify(verifyCtx); err != nil {
		// Keep serving; every send re-checks and reports its own failure.
		logger.WithError(err).WithField("provider", cfg.Mail.Provider).Warn("mail transport verification failed")
	} else {
		logger.WithField("provider", cfg.Mail.Provider).Info("mail transport verified")
	}
	cancelVerify()

	var resetLimiter service.ResetRequestLimiter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, reset throttle will fail open")
		}
		resetLimiter = limiter.NewResetLimiter(redisClient, cfg.ResetRequestLimit, cfg.ResetRequestWindow)
	}

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}
	accessIssuer := service.JWTAccessIssuer{Manager: &accessManager}

	accountRepo := repository.NewAccountRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)
	passwordHasher := service.BcryptPasswordHasher{Cost: cfg.BcryptCost}

	authService := service.NewAuthService(
		accountRepo,
		securityRepo,
		passwordHasher,
		accessIssuer,
		service.AuthConfig{AccessTokenTTL: cfg.AccessTokenTTL},
		logger,
	)
	resetService := service.NewResetService(
		accountRepo,
		securityRepo,
		service.NewResetMailer(transport, cfg.Mail.From, cfg.ResetTokenTTL),
		passwordHasher,
		resetLimiter,
		service.RealClock{},
		service.ResetConfig{
			AppBaseURL:    cfg.AppBaseURL,
			ResetTokenTTL: cfg.ResetTokenTTL,
		},
		logger,
	)

	validate := handler.NewValidator()
	authHandler := handler.NewAuthHandler(authService, validate, logger)
	resetHandler := handler.NewResetHandler(resetService, validate, logger, cfg.ResetConcealUnknownEmail)
	healthHandler := &handler.HealthHandler{Ping: sqlDB.PingContext, Logger: logger}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.HTTPErrorHandler = handler.HTTPErrorHandler(logger)
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			uri := v.URI
			if c.Path() == resetPageRoute {
				uri = resetPageRoute
			}
			entry := logger.WithFields(logrus.Fields{
				"status":     v.Status,
				"method":     v.Method,
				"uri":        uri,
				"ip":         v.RemoteIP,
				"request_id": v.RequestID,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	app.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	app.Use(echoMiddleware.SecureWithConfig(echoMiddleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'",
	}))
	app.Use(echoMiddleware.BodyLimit("64K"))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager}
	router := routes.NewRouter(app, authHandler, resetHandler, healthHandler, authMiddleware)
	router.RegisterRoutes()

	go resetService.RunSweeper(ctx, cfg.ResetSweepInterval)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	logger.WithField("addr", cfg.HTTPAddr).Info("server started")
	if err := serve(ctx, app, server, shutdownTimeout); err != nil {
		logger.WithError(err).Error("server stopped")
		return
	}
	logger.Info("server stopped")
}

// serve runs server until ctx is cancelled, then drains in-flight requests
// for at most timeout before returning.
func serve(ctx context.Context, app *echo.Echo, server *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.StartServer(server)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	// app.Shutdown only knows about echo's own e.Server; server is ours.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMailTransport(cfg config.MailConfig) mail.Transport {
	switch cfg.Provider {
	case config.MailProviderResend:
		t := mail.NewResendTransport(cfg.ResendAPIKey)
		t.ConnectTimeout = cfg.ConnectTimeout
		t.HandshakeTimeout = cfg.HandshakeTimeout
		t.SocketTimeout = cfg.SocketTimeout
		return t
	default:
		t := mail.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		t.ImplicitTLS = cfg.SMTPImplicitTLS
		t.ConnectTimeout = cfg.ConnectTimeout
		t.HandshakeTimeout = cfg.HandshakeTimeout
		t.SocketTimeout = cfg.SocketTimeout
		return t
	}
}
