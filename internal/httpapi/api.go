package httpapi

import (
	"net/http"
	"time"

	"dealersync/internal/auth"
	"dealersync/internal/config"
	"dealersync/internal/httpapi/handlers"
	"dealersync/internal/store"
	"dealersync/internal/syncer"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type API struct {
	cfg     config.Config
	auth    *auth.Authenticator
	handler *handlers.Handler
	logger  zerolog.Logger
}

func New(cfg config.Config, st *store.Store, authn *auth.Authenticator, trigger *SyncTrigger, settings *syncer.SettingsService, logger zerolog.Logger) *API {
	return &API{
		cfg:     cfg,
		auth:    authn,
		handler: handlers.New(cfg, st, trigger, settings),
		logger:  logger,
	}
}

func (a *API) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := a.logger.Info()
			if v.Error != nil {
				evt = a.logger.Warn().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: a.cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderAccept,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			"X-API-Token",
		},
		MaxAge: 600,
	}))

	a.registerRoutes(e)
	return e
}

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := e.Group("/api/v1")
	v1.GET("/listings", a.handler.ListListings)
	v1.GET("/listings/:id", a.handler.GetListing)

	v1Auth := v1.Group("")
	v1Auth.Use(a.auth.Middleware)
	v1Auth.POST("/sync", a.handler.TriggerSync)
	v1Auth.GET("/sync/status", a.handler.SyncStatus)
	v1Auth.GET("/sync/logs", a.handler.ListSyncLogs)
	v1Auth.GET("/sync/config", a.handler.GetSyncConfig)
	v1Auth.PUT("/sync/config", a.handler.UpdateSyncConfig)

	internal := e.Group("/api/internal")
	internal.Use(a.auth.Middleware, auth.AdminOnly)
	internal.POST("/tokens", a.handler.CreateToken)
}
