package server

import (
	"errors"
	"net/http"
	"strconv"

	"otacast/pkg/catalog"
	"otacast/pkg/log"
	"otacast/pkg/models"

	"github.com/labstack/echo/v4"
)

type createRuleRequest struct {
	Type      string           `json:"type"`
	Value     models.RuleValue `json:"value"`
	Priority  int              `json:"priority"`
	IsEnabled *bool            `json:"is_enabled"`
}

func (srv *Server) createRule(ctx echo.Context) error {
	updateID := ctx.Param("id")
	if _, err := srv.catalog.GetUpdate(ctx.Request().Context(), updateID); err != nil {
		return mapUpdateError(ctx, err)
	}

	var req createRuleRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "malformed rule body",
		})
	}
	enabled := req.IsEnabled == nil || *req.IsEnabled

	rule, err := srv.catalog.CreateRule(ctx.Request().Context(), updateID, req.Type, req.Value, req.Priority, enabled)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidRule) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		log.Error().Err(err).Str("update_id", updateID).Msg("Failed to create rule")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create rule",
		})
	}

	return ctx.JSON(http.StatusCreated, rule)
}

func (srv *Server) listRules(ctx echo.Context) error {
	updateID := ctx.Param("id")
	if _, err := srv.catalog.GetUpdate(ctx.Request().Context(), updateID); err != nil {
		return mapUpdateError(ctx, err)
	}

	rules, err := srv.catalog.ListRules(ctx.Request().Context(), updateID)
	if err != nil {
		log.Error().Err(err).Str("update_id", updateID).Msg("Failed to list rules")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
	}

	return ctx.JSON(http.StatusOK, rules)
}

func (srv *Server) deleteRule(ctx echo.Context) error {
	ruleID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "rule id must be an integer",
		})
	}

	if err = srv.catalog.DeleteRule(ctx.Request().Context(), ruleID); err != nil {
		if errors.Is(err, catalog.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
		}
		log.Error().Err(err).Int64("rule_id", ruleID).Msg("Failed to delete rule")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
	}

	return ctx.NoContent(http.StatusNoContent)
}

func mapUpdateError(ctx echo.Context, err error) error {
	if errors.Is(err, catalog.ErrUpdateNotFound) {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "update not found",
		})
	}
	log.Error().Err(err).Msg("Failed to load update")
	return ctx.JSON(http.StatusInternalServerError, map[string]string{
		"error": "failed to load update",
	})
}
