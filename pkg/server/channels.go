package server

import (
	"net/http"

	"otacast/pkg/log"
	"otacast/pkg/signing"

	"github.com/labstack/echo/v4"
)

type createChannelRequest struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

func (srv *Server) createChannel(ctx echo.Context) error {
	var req createChannelRequest
	if err := ctx.Bind(&req); err != nil || req.Project == "" || req.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "project and name are required",
		})
	}

	channel, err := srv.catalog.CreateChannel(ctx.Request().Context(), req.Project, req.Name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create channel")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create channel",
		})
	}

	log.Info().Str("project", req.Project).Str("name", req.Name).Msg("Channel created")
	return ctx.JSON(http.StatusCreated, channel)
}

func (srv *Server) regenerateChannelKey(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	key, err := srv.catalog.RegenerateChannelKey(ctx.Request().Context(), channelID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to regenerate channel key")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to regenerate channel key",
		})
	}

	// The old key is dead from this response on.
	return ctx.JSON(http.StatusOK, map[string]string{
		"key": key,
	})
}

func (srv *Server) enableChannelSigning(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	publicPEM, privatePEM, err := signing.GenerateKeyPair()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate signing key pair")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate signing key pair",
		})
	}

	if err = srv.catalog.SetChannelSigningKeys(ctx.Request().Context(), channelID, publicPEM, privatePEM); err != nil {
		log.Error().Err(err).Msg("Failed to store signing keys")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to store signing keys",
		})
	}

	log.Info().Int64("channel_id", channelID).Msg("Channel signing enabled")
	return ctx.JSON(http.StatusOK, map[string]string{
		"publicKey": publicPEM,
	})
}

type setChannelEnabledRequest struct {
	IsEnabled *bool `json:"is_enabled"`
}

func (srv *Server) setChannelEnabled(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	var req setChannelEnabledRequest
	if err := ctx.Bind(&req); err != nil || req.IsEnabled == nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "is_enabled is required",
		})
	}

	if err := srv.catalog.SetChannelEnabled(ctx.Request().Context(), channelID, *req.IsEnabled); err != nil {
		log.Error().Err(err).Msg("Failed to update channel")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update channel",
		})
	}

	log.Info().Int64("channel_id", channelID).Bool("enabled", *req.IsEnabled).Msg("Channel toggled")
	return ctx.JSON(http.StatusOK, map[string]bool{
		"is_enabled": *req.IsEnabled,
	})
}

func (srv *Server) deleteChannel(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	if err := srv.catalog.SoftDeleteChannel(ctx.Request().Context(), channelID); err != nil {
		log.Error().Err(err).Msg("Failed to delete channel")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete channel",
		})
	}

	log.Info().Int64("channel_id", channelID).Msg("Channel deleted")
	return ctx.NoContent(http.StatusNoContent)
}
