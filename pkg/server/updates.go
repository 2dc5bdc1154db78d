package server

import (
	"errors"
	"net/http"

	"otacast/pkg/catalog"
	"otacast/pkg/log"

	"github.com/labstack/echo/v4"
)

type setRolloutRequest struct {
	Percentage int `json:"percentage"`
}

// setUpdateRollout changes the staged rollout percentage. Raising it is
// always safe for already-enrolled devices since buckets are stable.
func (srv *Server) setUpdateRollout(ctx echo.Context) error {
	updateID := ctx.Param("id")

	var req setRolloutRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "malformed rollout body",
		})
	}

	if err := srv.catalog.SetUpdateRollout(ctx.Request().Context(), updateID, req.Percentage); err != nil {
		if errors.Is(err, catalog.ErrInvalidRule) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "percentage must be in [0, 100]",
			})
		}
		if errors.Is(err, catalog.ErrUpdateNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "update not found",
			})
		}
		log.Error().Err(err).Str("update_id", updateID).Msg("Failed to set rollout percentage")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to set rollout percentage",
		})
	}

	log.Info().Str("update_id", updateID).Int("percentage", req.Percentage).Msg("Rollout percentage changed")
	return ctx.NoContent(http.StatusNoContent)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (srv *Server) setUpdateEnabled(ctx echo.Context) error {
	updateID := ctx.Param("id")

	var req setEnabledRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "malformed body",
		})
	}

	if err := srv.catalog.SetUpdateEnabled(ctx.Request().Context(), updateID, req.Enabled); err != nil {
		if errors.Is(err, catalog.ErrUpdateNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "update not found",
			})
		}
		log.Error().Err(err).Str("update_id", updateID).Msg("Failed to toggle update")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to toggle update",
		})
	}

	return ctx.NoContent(http.StatusNoContent)
}
