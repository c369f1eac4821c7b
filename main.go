package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"tallerpro.mx/shop/config"
	"tallerpro.mx/shop/pkg/auth"
	"tallerpro.mx/shop/pkg/catalog"
	"tallerpro.mx/shop/pkg/chatbot"
	"tallerpro.mx/shop/pkg/ratelimit"
	"tallerpro.mx/shop/pkg/storage"
	"tallerpro.mx/shop/pkg/tracking"
	"tallerpro.mx/shop/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := config.NewLogger(settings.LogLevel, settings.LogFormat)
	if err := run(settings, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(settings *config.Settings, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.Connect(settings.DBDSN, log)
	if err != nil {
		return err
	}
	if err := config.Migrations(db); err != nil {
		return errors.Annotate(err, "could not run migrations")
	}
	if err := config.Seed(db, settings, log); err != nil {
		return errors.Annotate(err, "could not seed")
	}

	var (
		store     storage.Store
		uploadDir string
	)
	if settings.GCSBucket != "" {
		gcs, err := storage.NewGCSStore(ctx, settings.GCSBucket)
		if err != nil {
			return err
		}
		defer gcs.Close()
		store = gcs
	} else {
		local, err := storage.NewLocalStore(settings.UploadDir)
		if err != nil {
			return err
		}
		store, uploadDir = local, local.Dir
	}

	var limiter ratelimit.Limiter
	if settings.RedisAddr != "" {
		rdb, err := ratelimit.Dial(ctx, settings.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, "chat", settings.ChatRateLimit, settings.ChatRateWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(settings.ChatRateLimit, settings.ChatRateWindow, clock.WallClock)
	}

	tokens := auth.NewTokenManager(settings.JWTSecret, settings.JWTTTL, nil)
	authSvc := auth.NewService(db, tokens,
		auth.WithLockout(settings.LoginMaxAttempts, settings.LoginLockout),
		auth.WithLogger(log),
	)
	trackingSvc := tracking.NewService(db,
		tracking.WithForwardOnly(settings.TrackingForwardOnly),
		tracking.WithAttachmentStore(store),
		tracking.WithLogger(log),
	)
	services := catalog.NewServices(db)

	botOpts := []chatbot.Option{chatbot.WithBranches(settings.Branches), chatbot.WithLogger(log)}
	if settings.LLMAPIURL != "" {
		llm, err := chatbot.NewLLM(settings.LLMAPIURL, settings.LLMAPIKey, settings.LLMModel, &http.Client{Timeout: 20 * time.Second})
		if err != nil {
			return err
		}
		botOpts = append(botOpts, chatbot.WithLLM(llm))
	}

	handler := routes.RegisterRoutes(routes.Deps{
		DB:          db,
		Log:         log,
		Clock:       clock.WallClock,
		Tokens:      tokens,
		Auth:        authSvc,
		Users:       auth.NewUsers(db),
		Roles:       auth.NewRoles(db),
		Tracking:    trackingSvc,
		Clients:     catalog.NewClients(db),
		Vehicles:    catalog.NewVehicles(db),
		Employees:   catalog.NewEmployees(db),
		Services:    services,
		Inventory:   catalog.NewInventory(db, log),
		Quotes:      catalog.NewQuotes(db),
		Bot:         chatbot.New(settings.Shop, services, trackingSvc, botOpts...),
		ChatLimiter: limiter,
		Branches:    settings.Branches,
		UploadDir:   uploadDir,
		CORSOrigins: splitList(settings.CORSOrigin),

		TrustedProxies: settings.TrustedProxies,
	})

	srv := &http.Server{
		Addr:         ":" + settings.Port,
		Handler:      handler,
		ReadTimeout:  settings.ReadTimeout,
		WriteTimeout: settings.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": settings.Port, "version": Version}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Annotate(err, "graceful shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
