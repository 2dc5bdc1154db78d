// Package server is the HTTP surface of the update service: the client
// manifest and asset endpoints plus the operator API.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otacast/pkg/assets"
	"otacast/pkg/catalog"
	"otacast/pkg/ingest"
	"otacast/pkg/log"
	"otacast/pkg/resolve"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10

type Server struct {
	dataDir  string
	echo     *echo.Echo
	version  string
	catalog  *catalog.Store
	assets   *assets.Store
	engine   *resolve.Engine
	ingestor *ingest.Ingestor
}

func NewServer(dataDir, version string, catalogStore *catalog.Store, assetStore *assets.Store, engine *resolve.Engine, ingestor *ingest.Ingestor) *Server {
	return &Server{
		dataDir:  dataDir,
		echo:     echo.New(),
		version:  version,
		catalog:  catalogStore,
		assets:   assetStore,
		engine:   engine,
		ingestor: ingestor,
	}
}

func (srv *Server) Start(addr string) error {
	srv.setupRoutes()

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("addr", addr).
			Str("data_dir", srv.dataDir).
			Str("version", srv.version).
			Msg("Starting update server")

		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return srv.Shutdown()
}

func (srv *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

func (srv *Server) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))
	srv.echo.Use(middleware.Recover())

	// Client-facing protocol endpoints
	srv.echo.GET("/api/manifest", srv.checkManifest)
	srv.echo.GET("/assets/:hash", srv.downloadAsset)
	srv.echo.POST("/api/updates/:id/installed", srv.reportInstall)

	// Operator API
	srv.echo.POST("/api/channels", srv.createChannel)
	srv.echo.POST("/api/channels/:key/regenerate-key", srv.regenerateChannelKey)
	srv.echo.POST("/api/channels/:key/signing", srv.enableChannelSigning)
	srv.echo.PUT("/api/channels/:key/enabled", srv.setChannelEnabled)
	srv.echo.DELETE("/api/channels/:key", srv.deleteChannel)
	srv.echo.POST("/api/channels/:key/bundles", srv.publishBundle)
	srv.echo.GET("/api/channels/:key/directives", srv.listDirectives)
	srv.echo.GET("/api/channels/:key/directives/active", srv.activeDirective)
	srv.echo.POST("/api/channels/:key/directives", srv.createDirective)
	srv.echo.POST("/api/directives/:id/deactivate", srv.deactivateDirective)
	srv.echo.DELETE("/api/directives/:id", srv.deleteDirective)
	srv.echo.GET("/api/updates/:id/rules", srv.listRules)
	srv.echo.POST("/api/updates/:id/rules", srv.createRule)
	srv.echo.DELETE("/api/rules/:id", srv.deleteRule)
	srv.echo.PUT("/api/updates/:id/rollout", srv.setUpdateRollout)
	srv.echo.PUT("/api/updates/:id/enabled", srv.setUpdateEnabled)

	srv.echo.GET("/node/info", srv.getNodeInfo)
}

// channelByKey resolves an operator-facing channel path parameter. Soft
// deleted channels are invisible here too.
func (srv *Server) channelByKey(ctx echo.Context) (int64, error) {
	channel, err := srv.catalog.GetChannelByKey(ctx.Request().Context(), ctx.Param("key"))
	if errors.Is(err, catalog.ErrChannelNotFound) {
		return 0, echo.NewHTTPError(http.StatusNotFound, "channel not found")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve channel")
		return 0, echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve channel")
	}
	return channel.ID, nil
}
