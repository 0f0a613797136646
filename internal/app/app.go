// Package app wires the configuration, the REST client, the per-request
// adapters and the protocol engine into a running server.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ceres919/go-webdav/caldav"
	"github.com/ceres919/go-webdav/carddav"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/averich/dav-bridge/internal/auth"
	bridgecaldav "github.com/averich/dav-bridge/internal/caldav"
	bridgecarddav "github.com/averich/dav-bridge/internal/carddav"
	"github.com/averich/dav-bridge/internal/config"
	loggermw "github.com/averich/dav-bridge/internal/delivery/http/middleware/logger"
	"github.com/averich/dav-bridge/internal/metrics"
	"github.com/averich/dav-bridge/internal/principal"
	"github.com/averich/dav-bridge/internal/rest"
	"github.com/averich/dav-bridge/pkg/httpserver"
	"github.com/averich/dav-bridge/pkg/logger"
)

func Run(cfg *config.Config) {
	l := logger.New(cfg.Log.Level, cfg.App.Env)

	// REST client, one per process; credentials travel per call.
	client := rest.NewClient(cfg.API.Timeout, l)
	principalsAPI := rest.NewPrincipalsAPI(client)
	calendarsAPI := rest.NewCalendarsAPI(client)
	addressBooksAPI := rest.NewAddressBooksAPI(client)

	hosts := auth.Hosts{
		DAV:     cfg.API.DAVHostURL(),
		CalDAV:  cfg.API.CalDAVHostURL(),
		CardDAV: cfg.API.CardDAVHostURL(),
	}
	userAgent := cfg.App.Name + "/" + cfg.App.Version

	newSession := func() *auth.Session {
		return auth.NewSession(hosts, userAgent, principalsAPI, l)
	}
	attach := func(ctx context.Context, s *auth.Session) context.Context {
		ctx = principal.NewContext(ctx, principal.New(cfg.App.PrincipalPrefix, s, l))
		ctx = bridgecaldav.NewContext(ctx, bridgecaldav.New(s, calendarsAPI, l))
		return bridgecarddav.NewContext(ctx, bridgecarddav.New(s, addressBooksAPI, l))
	}
	authProvider, err := auth.NewBasicAuth(cfg.App.Name, newSession, attach, l)
	if err != nil {
		l.Error("app - Run - auth.NewBasicAuth", logger.Err(err))
		os.Exit(1)
	}

	upBackend := &userPrincipalBackend{}
	caldavBackend, err := bridgecaldav.NewEngine(upBackend, cfg.App.CalDAVPrefix, l)
	if err != nil {
		l.Error("app - Run - caldav.NewEngine", logger.Err(err))
		os.Exit(1)
	}
	carddavBackend, err := bridgecarddav.NewEngine(upBackend, cfg.App.CardDAVPrefix, l)
	if err != nil {
		l.Error("app - Run - carddav.NewEngine", logger.Err(err))
		os.Exit(1)
	}

	// HTTP Server
	for _, method := range []string{
		"PROPFIND",
		"PROPPATCH",
		"REPORT",
		"MKCOL",
		"MKCALENDAR",
		"COPY",
		"MOVE",
		"OPTIONS",
	} {
		chi.RegisterMethod(method)
	}

	s := chi.NewRouter()
	s.Use(middleware.RequestID)
	s.Use(middleware.Recoverer)
	s.Use(loggermw.New(l))
	s.Use(corsMiddleware(cfg))
	s.Use(metrics.Middleware())
	s.Use(authProvider.Middleware())

	carddavHandler := carddav.Handler{Backend: carddavBackend}
	caldavHandler := caldav.Handler{Backend: caldavBackend}
	handler := davHandler{
		realm:           cfg.App.Name,
		principalPrefix: cfg.App.PrincipalPrefix,
		upBackend:       upBackend,
		caldavBackend:   caldavBackend,
		carddavBackend:  carddavBackend,
	}

	s.Mount("/", &handler)
	s.Mount("/.well-known/caldav", &caldavHandler)
	s.Mount("/.well-known/carddav", &carddavHandler)
	s.Mount("/{user}/"+cfg.App.CalDAVPrefix, &caldavHandler)
	s.Mount("/{user}/"+cfg.App.CardDAVPrefix, &carddavHandler)

	httpServer := httpserver.New(s,
		httpserver.Addr(cfg.HTTP.IP, cfg.HTTP.Port),
		httpserver.ReadTimeout(cfg.HTTP.Timeout),
	)
	l.Info("app - Run - listening", "addr", cfg.HTTP.IP+":"+cfg.HTTP.Port)

	var metricsServer *httpserver.Server
	var metricsNotify <-chan error
	if cfg.Metrics.Enabled {
		m := chi.NewRouter()
		m.Handle("/metrics", metrics.Handler())
		metricsServer = httpserver.New(m, httpserver.Port(cfg.Metrics.Port))
		metricsNotify = metricsServer.Notify()
		l.Info("app - Run - metrics listening", "port", cfg.Metrics.Port)
	}

	// Waiting signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-interrupt:
		l.Info("app - Run - signal: " + sig.String())
	case err = <-httpServer.Notify():
		l.Error("app - Run", logger.Err(fmt.Errorf("httpServer.Notify: %w", err)))
	case err = <-metricsNotify:
		l.Error("app - Run", logger.Err(fmt.Errorf("metricsServer.Notify: %w", err)))
	}

	// Shutdown
	if err := httpServer.Shutdown(); err != nil {
		l.Error("app - Run", logger.Err(fmt.Errorf("httpServer.Shutdown: %w", err)))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(); err != nil {
			l.Error("app - Run", logger.Err(fmt.Errorf("metricsServer.Shutdown: %w", err)))
		}
	}
}
