// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/oevent/internal/auth"
	"github.com/olegiv/oevent/internal/cache"
	"github.com/olegiv/oevent/internal/config"
	"github.com/olegiv/oevent/internal/geoip"
	"github.com/olegiv/oevent/internal/handler"
	"github.com/olegiv/oevent/internal/handler/api"
	"github.com/olegiv/oevent/internal/i18n"
	"github.com/olegiv/oevent/internal/imaging"
	"github.com/olegiv/oevent/internal/logging"
	"github.com/olegiv/oevent/internal/mail"
	"github.com/olegiv/oevent/internal/middleware"
	"github.com/olegiv/oevent/internal/model"
	"github.com/olegiv/oevent/internal/render"
	"github.com/olegiv/oevent/internal/scheduler"
	"github.com/olegiv/oevent/internal/service"
	"github.com/olegiv/oevent/internal/session"
	"github.com/olegiv/oevent/internal/store"
	"github.com/olegiv/oevent/internal/version"
	"github.com/olegiv/oevent/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Cache lifetimes for served files, in seconds.
const (
	staticMaxAge = 31536000
	mediaMaxAge  = 604800
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "oevent - event management with role-based dashboards\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_SECRET_KEY      Signing key for sessions and account links (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_DB_PATH         SQLite database path (default: ./data/oevent.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_SMTP_HOST       SMTP relay; mail is logged when unset\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_REDIS_URL       Redis URL for the event cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OEVENT_GEOIP_DB_PATH   GeoLite2-Country database for audit entries (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Printf("oevent %s\n", info)
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(info version.Info) error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := i18n.Init(logger); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Warnings and errors also go to the audit log.
	logger = slog.New(logging.NewAuditHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}), db))
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := store.Seed(ctx, db, store.SeedConfig{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	eventCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTL,
	}, logger)
	defer func() { _ = eventCache.Close() }()

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("GeoIP database unavailable, audit entries will have no country", "path", cfg.GeoIPDBPath, "error", err)
	}
	defer func() { _ = geo.Close() }()

	var sender mail.Sender = mail.NewLogSender(logger)
	if cfg.UseSMTP() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			TLS:      cfg.SMTPTLS,
		})
		slog.Info("smtp mail enabled", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	} else {
		slog.Info("no SMTP host configured, mail is written to the log")
	}
	notifier := mail.NewDispatcher(sender, cfg.SiteURL(), cfg.MailTimeout, logger)

	tokens := auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL)
	processor := imaging.NewProcessor(cfg.UploadsDir)

	rbac := service.NewRBACService(db, logger)
	accounts := service.NewAccountService(db, tokens, notifier, processor, logger)
	events := service.NewEventService(db, processor, notifier, eventCache, cfg.CacheTTL, logger)
	groups := service.NewGroupService(db, rbac, logger)
	audit := service.NewAuditService(db, geo, logger)

	sessionManager := session.New(db, cfg.IsDevelopment())

	renderer, err := render.New(render.Config{
		TemplatesFS:    web.TemplatesFS(),
		SessionManager: sessionManager,
		Roles:          rbac,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	sched := scheduler.New(logger)
	housekeeping := scheduler.Housekeeping{
		Audit:           audit,
		AuditRetention:  cfg.AuditRetention,
		Accounts:        accounts,
		InactiveUserTTL: cfg.InactiveUserTTL,
	}
	if geo.Enabled() {
		housekeeping.GeoIP = geo
	}
	if err := housekeeping.Register(sched); err != nil {
		return fmt.Errorf("registering housekeeping jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	loginProtection := middleware.NewLoginProtection(ctx, middleware.DefaultLoginProtectionConfig())
	apiLimiter := middleware.NewIPRateLimiter(ctx, 10, 20, 5*time.Minute)

	h := handlers{
		auth:      handler.NewAuthHandler(renderer, sessionManager, accounts, rbac, audit, loginProtection, logger),
		events:    handler.NewEventsHandler(renderer, sessionManager, events, audit, logger),
		dashboard: handler.NewDashboardHandler(renderer, sessionManager, rbac, accounts, events, groups, audit, sched, logger),
		groups:    handler.NewGroupsHandler(renderer, sessionManager, groups, audit, logger),
		profile:   handler.NewProfileHandler(renderer, sessionManager, accounts, events, audit, logger),
		health:    handler.NewHealthHandler(db, cfg.UploadsDir, info),
		seo:       handler.NewSEOHandler(events, cfg.SiteURL(), cfg.IsDevelopment(), logger),
		media:     handler.NewMediaHandler(renderer, sessionManager, cfg.UploadsDir, logger),
		api:       api.NewHandler(events, logger),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	// Stateless routes skip the session.
	r.Get(handler.RouteHealth, h.health.Health)
	r.Get(handler.RouteRobots, h.seo.Robots)
	r.Get(handler.RouteSitemap, h.seo.Sitemap)
	r.Handle("/static/*", middleware.StaticCache(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(web.StaticFS())))))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.CORS(cfg.CORSOrigins))
		r.Use(apiLimiter.JSONMiddleware)
		r.Get("/events", h.api.ListEvents)
		r.Get("/events/{id}", h.api.GetEvent)
	})

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(middleware.CSRF(middleware.NewCSRFConfig([]byte(cfg.SecretKey), cfg.SiteURL(), cfg.TrustedOrigins)))
		r.Use(middleware.Language)
		r.Use(middleware.LoadUser(sessionManager, accounts))
		registerPageRoutes(r, h, sessionManager, rbac, loginProtection)
		r.Handle(handler.RouteMedia, middleware.StaticCache(mediaMaxAge)(http.HandlerFunc(h.media.Serve)))
		r.NotFound(h.events.NotFound)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

type handlers struct {
	auth      *handler.AuthHandler
	events    *handler.EventsHandler
	dashboard *handler.DashboardHandler
	groups    *handler.GroupsHandler
	profile   *handler.ProfileHandler
	media     *handler.MediaHandler
	health    *handler.HealthHandler
	seo       *handler.SEOHandler
	api       *api.Handler
}

// registerPageRoutes registers the HTML pages. Paths are matched after
// StripSlashes, so the trailing-slash links used by the templates resolve.
func registerPageRoutes(r chi.Router, h handlers, sm *scs.SessionManager, roles middleware.RoleChecker, lp *middleware.LoginProtection) {
	r.Get(handler.RouteRoot, h.events.List)
	r.Get(handler.RouteEventID, h.events.Detail)

	r.Get(handler.RouteSignup, h.auth.SignupForm)
	r.Post(handler.RouteSignup, h.auth.Signup)
	r.Get(handler.RouteLogin, h.auth.LoginForm)
	r.With(lp.Middleware).Post(handler.RouteLogin, h.auth.Login)
	r.Get(handler.RouteLogout, h.auth.Logout)
	r.Post(handler.RouteLogout, h.auth.Logout)
	r.Get(handler.RouteActivate, h.auth.Activate)
	r.Get(handler.RoutePasswordReset, h.auth.PasswordResetForm)
	r.Post(handler.RoutePasswordReset, h.auth.PasswordReset)
	r.Get(handler.RoutePasswordResetDone, h.auth.PasswordResetDone)
	r.Get(handler.RoutePasswordResetConfirm, h.auth.PasswordResetConfirmForm)
	r.Post(handler.RoutePasswordResetConfirm, h.auth.PasswordResetConfirm)
	r.Get(handler.RoutePasswordResetFinish, h.auth.PasswordResetComplete)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireLogin)

		r.Get(handler.RouteEventNew, h.events.NewForm)
		r.Post(handler.RouteEventNew, h.events.Create)
		r.Get(handler.RouteEventEdit, h.events.EditForm)
		r.Post(handler.RouteEventEdit, h.events.Update)
		r.Get(handler.RouteEventDelete, h.events.DeleteConfirm)
		r.Post(handler.RouteEventDelete, h.events.Delete)
		r.Post(handler.RouteEventRSVP, h.events.RSVP)

		r.Get(handler.RouteProfile, h.profile.Show)
		r.Get(handler.RouteProfileEdit, h.profile.EditForm)
		r.Post(handler.RouteProfileEdit, h.profile.Edit)
		r.Get(handler.RouteProfileChangePassword, h.profile.ChangePasswordForm)
		r.Post(handler.RouteProfileChangePassword, h.profile.ChangePassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sm, roles, model.RoleAdmin, "flash.no_admin"))

		r.Get(handler.RouteDashboardAdmin, h.dashboard.Admin)
		r.Get(handler.RouteDashboardChangeRole, h.dashboard.ChangeRoleConfirm)
		r.Post(handler.RouteDashboardChangeRole, h.dashboard.ChangeRole)
		r.Get(handler.RouteDashboardDeleteUser, h.dashboard.DeleteUserConfirm)
		r.Post(handler.RouteDashboardDeleteUser, h.dashboard.DeleteUser)
		r.Post(handler.RouteDashboardRunJob, h.dashboard.RunJob)

		r.Get(handler.RouteGroupDelete, h.groups.DeleteConfirm)
		r.Post(handler.RouteGroupDelete, h.groups.Delete)
		r.Get(handler.RouteGroupID, h.groups.Detail)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRoleOr(sm, roles, model.RoleAdmin, "flash.no_group_permission", handler.RouteDashboardAdmin+"/"))

		r.Get(handler.RouteGroupCreate, h.groups.CreateForm)
		r.Post(handler.RouteGroupCreate, h.groups.Create)
	})

	r.With(middleware.RequireRole(sm, roles, model.RoleOrganizer, "flash.no_organizer")).
		Get(handler.RouteDashboardOrganizer, h.dashboard.Organizer)
	r.With(middleware.RequireRole(sm, roles, model.RoleParticipant, "flash.no_participant")).
		Get(handler.RouteDashboardParticipant, h.dashboard.Participant)
}
