package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/odontocare-api/internal/config"
	"github.com/jwalitptl/odontocare-api/internal/handler"
	"github.com/jwalitptl/odontocare-api/internal/handler/admin"
	"github.com/jwalitptl/odontocare-api/internal/handler/appointment"
	"github.com/jwalitptl/odontocare-api/internal/handler/auth"
	"github.com/jwalitptl/odontocare-api/internal/middleware"
	"github.com/jwalitptl/odontocare-api/internal/repository/postgres"
	"github.com/jwalitptl/odontocare-api/internal/router"
	appointmentService "github.com/jwalitptl/odontocare-api/internal/service/appointment"
	authService "github.com/jwalitptl/odontocare-api/internal/service/auth"
	directoryService "github.com/jwalitptl/odontocare-api/internal/service/directory"
	jwtauth "github.com/jwalitptl/odontocare-api/pkg/auth"
	"github.com/jwalitptl/odontocare-api/pkg/logger"
	"github.com/jwalitptl/odontocare-api/pkg/metrics"
	"github.com/jwalitptl/odontocare-api/pkg/security"
	"github.com/jwalitptl/odontocare-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := validator.RegisterGin(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(log.Logger.WithContext(ctx), db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	store := postgres.NewStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("odontocare", reg)

	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	jwtSvc := jwtauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())

	authSvc := authService.NewService(store.Tx, store.Users, hasher, jwtSvc, m)
	directorySvc := directoryService.NewService(store, hasher)
	appointmentSvc := appointmentService.NewService(store, m)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		auth.NewHandler(authSvc, authMiddleware),
		admin.NewHandler(directorySvc, authMiddleware),
		appointment.NewHandler(appointmentSvc, authMiddleware),
		handler.NewHandler(db, reg),
		m,
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RequestTimeout: cfg.Server.WriteTimeout,
			RateLimit:      cfg.RateLimit,
			CORS:           cfg.CORS,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server exited properly")
}
