package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"otacast/pkg/catalog"
	"otacast/pkg/log"

	"github.com/labstack/echo/v4"
)

type createDirectiveRequest struct {
	RuntimeVersion string            `json:"runtime_version"`
	Type           string            `json:"type"`
	Parameters     map[string]string `json:"parameters"`
	Extra          map[string]string `json:"extra"`
	ExpiresAt      *time.Time        `json:"expires_at"`
}

func (srv *Server) createDirective(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	var req createDirectiveRequest
	if err = ctx.Bind(&req); err != nil || req.RuntimeVersion == "" || req.Type == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "runtime_version and type are required",
		})
	}

	directive, err := srv.catalog.CreateDirective(ctx.Request().Context(), catalog.CreateDirectiveParams{
		ChannelID:      channelID,
		RuntimeVersion: req.RuntimeVersion,
		Type:           req.Type,
		Parameters:     req.Parameters,
		Extra:          req.Extra,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		log.Error().Err(err).Int64("channel_id", channelID).Msg("Failed to create directive")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create directive",
		})
	}

	log.Info().
		Int64("channel_id", channelID).
		Str("runtime_version", req.RuntimeVersion).
		Str("type", req.Type).
		Msg("Directive created")
	return ctx.JSON(http.StatusCreated, directive)
}

func (srv *Server) listDirectives(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	directives, err := srv.catalog.ListDirectives(ctx.Request().Context(), channelID)
	if err != nil {
		log.Error().Err(err).Int64("channel_id", channelID).Msg("Failed to list directives")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list directives",
		})
	}

	return ctx.JSON(http.StatusOK, directives)
}

func (srv *Server) activeDirective(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	runtimeVersion := ctx.QueryParam("runtimeVersion")
	if runtimeVersion == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "runtimeVersion is required",
		})
	}

	directive, err := srv.catalog.ActiveDirective(ctx.Request().Context(), channelID, runtimeVersion, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Int64("channel_id", channelID).Msg("Failed to resolve active directive")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to resolve active directive",
		})
	}
	if directive == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	return ctx.JSON(http.StatusOK, directive)
}

func (srv *Server) deactivateDirective(ctx echo.Context) error {
	return srv.directiveAction(ctx, srv.catalog.DeactivateDirective)
}

func (srv *Server) deleteDirective(ctx echo.Context) error {
	return srv.directiveAction(ctx, srv.catalog.DeleteDirective)
}

func (srv *Server) directiveAction(ctx echo.Context, action func(context.Context, int64) error) error {
	directiveID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "directive id must be an integer",
		})
	}

	if err = action(ctx.Request().Context(), directiveID); err != nil {
		if errors.Is(err, catalog.ErrDirectiveNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "directive not found",
			})
		}
		log.Error().Err(err).Int64("directive_id", directiveID).Msg("Directive action failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "directive action failed",
		})
	}

	return ctx.NoContent(http.StatusNoContent)
}
