package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/tech-e/apiserver/config"
	"github.com/tech-e/apiserver/internal/auth"
	"github.com/tech-e/apiserver/internal/db"
	"github.com/tech-e/apiserver/internal/handlers"
	"github.com/tech-e/apiserver/internal/logging"
	"github.com/tech-e/apiserver/internal/mail"
	"github.com/tech-e/apiserver/internal/mq"
	"github.com/tech-e/apiserver/internal/payments"
	"github.com/tech-e/apiserver/internal/services"
	"github.com/tech-e/apiserver/internal/storage"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
	"go.uber.org/zap"
)

// Deps are the collaborators the router is built from. Objects, Gateway
// and Notifier are optional.
type Deps struct {
	Config   config.Config
	Logger   *zap.Logger
	Users    services.UserRepository
	Packages services.PackageRepository
	Payments services.PaymentRepository
	Contacts services.ContactRepository
	Objects  storage.ObjectStorage
	Gateway  services.PaymentGateway
	Notifier mail.Notifier
}

// NewRouter builds the HTTP surface. Protected routes compose the two gate
// stages explicitly: RequireAuth alone for authenticated routes, followed
// by RequireRole for admin routes.
func NewRouter(d Deps) (*chi.Mux, error) {
	cfg := d.Config
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IsDevelopment() {
		logger.Warn("Running in development mode: error traces are sent to clients and cookies are not Secure; set ENV=production for deployments",
			zap.String("env", cfg.Env))
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = mail.Discard{}
	}

	responder := handlers.NewResponder(logger, cfg.IsDevelopment())
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessions := auth.NewSessionTransport(cfg.IsProduction())
	gate := auth.NewGate(sessions, issuer, responder.Error, handlers.ObserveTokenVerification)

	authenticated := gate.RequireAuth
	admin := []func(http.Handler) http.Handler{gate.RequireAuth, gate.RequireRole(types.RoleAdmin)}

	userService := services.NewUserService(
		d.Users,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		issuer,
		logger,
		services.WithRejectBlocked(cfg.Auth.RejectBlocked),
		services.WithWelcomeNotifier(notifier),
	)
	packageService := services.NewPackageService(d.Packages, d.Objects, logger)
	paymentService := services.NewPaymentService(d.Payments, d.Gateway, cfg.Payments.Currency, logger)
	contactService := services.NewContactService(d.Contacts)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		securityHeaders(cfg.IsProduction()),
		cors.New(cors.Options{
			AllowedOrigins:   []string{cfg.CORSOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler,
	)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responder.Error(w, r, errRouteNotFound)
	})

	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	handlers.AuthRouter(router, handlers.NewAuthHandler(userService, sessions, responder), authenticated)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, responder), admin...)
	})
	router.Route("/packages", func(r chi.Router) {
		handlers.PackageRouter(r, handlers.NewPackageHandler(packageService, responder), admin...)
	})
	router.Route("/payments", func(r chi.Router) {
		handlers.PaymentRouter(r, handlers.NewPaymentHandler(paymentService, responder), authenticated, admin...)
	})
	router.Route("/contact", func(r chi.Router) {
		handlers.ContactRouter(r, handlers.NewContactHandler(contactService, responder), admin...)
	})

	return router, nil
}

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	db         *sql.DB
	broker     mq.Backend
	mailer     *mail.AsyncNotifier
}

// New connects to the database and the optional backends selected by cfg
// and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{logger: logger, db: dbConn}

	deps := Deps{
		Config:   cfg,
		Logger:   logger,
		Users:    store.NewUserRepository(dbConn),
		Packages: store.NewPackageRepository(dbConn),
		Payments: store.NewPaymentRepository(dbConn),
		Contacts: store.NewContactRepository(dbConn),
	}

	if deps.Notifier, err = s.welcomeNotifier(ctx, cfg); err != nil {
		s.close()
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case err == nil:
		deps.Objects = objects
	case errors.Is(err, storage.ErrDisabled):
		logger.Info("Object storage disabled; package image endpoints will return 503")
	default:
		s.close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	gateway, err := payments.NewStripeGateway(cfg.Payments.StripeSecretKey)
	switch {
	case err == nil:
		deps.Gateway = gateway
	case errors.Is(err, payments.ErrNotConfigured):
		logger.Info("Stripe not configured; payment intent creation will return 503")
	default:
		s.close()
		return nil, err
	}

	router, err := NewRouter(deps)
	if err != nil {
		s.close()
		return nil, err
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// welcomeNotifier publishes to the mail queue when a broker is configured,
// otherwise sends over SMTP in the background.
func (s *Server) welcomeNotifier(ctx context.Context, cfg config.Config) (mail.Notifier, error) {
	broker, err := mq.Open(ctx, cfg.MQ)
	if err == nil {
		s.broker = broker
		s.logger.Info("Welcome mail routed through queue", zap.String("backend", cfg.MQ.Backend), zap.String("queue", cfg.Mail.Queue))
		return mail.NewQueueNotifier(broker, cfg.Mail.Queue, handlers.ObserveMail("enqueue")), nil
	}
	if !errors.Is(err, mq.ErrDisabled) {
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	if cfg.Mail.User == "" {
		s.logger.Warn("EMAIL_USER not set; welcome mail disabled")
		return mail.Discard{}, nil
	}
	sender, err := mail.NewSMTPSender(cfg.Mail)
	if err != nil {
		return nil, err
	}
	s.mailer = mail.NewAsyncNotifier(sender, s.logger, handlers.ObserveMail("send"))
	return s.mailer, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and pending mail, then releases
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mailer != nil {
		done := make(chan struct{})
		go func() {
			s.mailer.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("Shutdown deadline reached with welcome mail in flight")
		}
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
