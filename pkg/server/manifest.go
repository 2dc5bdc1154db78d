package server

import (
	"errors"
	"net/http"

	"otacast/pkg/catalog"
	"otacast/pkg/log"
	"otacast/pkg/models"
	"otacast/pkg/resolve"

	"github.com/labstack/echo/v4"
)

// Protocol headers accepted as fallbacks for the query parameters, matching
// what mobile update clients send.
const (
	headerChannelKey       = "expo-channel-name"
	headerRuntimeVersion   = "expo-runtime-version"
	headerPlatform         = "expo-platform"
	headerDeviceID         = "eas-client-id"
	headerEmbeddedUpdateID = "expo-embedded-update-id"
	headerManifestFilters  = "expo-manifest-filters"
	headerSignature        = "expo-signature"
)

func (srv *Server) checkManifest(ctx echo.Context) error {
	req := models.CheckRequest{
		ChannelKey:       paramOrHeader(ctx, "channel", headerChannelKey),
		RuntimeVersion:   paramOrHeader(ctx, "runtimeVersion", headerRuntimeVersion),
		Platform:         paramOrHeader(ctx, "platform", headerPlatform),
		DeviceID:         paramOrHeader(ctx, "deviceId", headerDeviceID),
		EmbeddedUpdateID: paramOrHeader(ctx, "embeddedUpdateId", headerEmbeddedUpdateID),
	}

	if req.ChannelKey == "" || req.RuntimeVersion == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "channel and runtimeVersion are required",
		})
	}
	if req.Platform != models.PlatformIOS && req.Platform != models.PlatformAndroid {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "platform must be ios or android",
		})
	}

	result, err := srv.engine.Check(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, resolve.ErrUnknownChannel) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "unknown channel",
			})
		}
		log.Error().Err(err).Str("channel_key", req.ChannelKey).Msg("Manifest check failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "manifest check failed",
		})
	}

	// Filters and signature travel out of band as well, so intermediaries
	// can act on them without parsing the manifest body.
	if result.ManifestFilters != "" {
		ctx.Response().Header().Set(headerManifestFilters, result.ManifestFilters)
	}
	if result.Signature != "" {
		ctx.Response().Header().Set(headerSignature, result.Signature)
	}

	return ctx.JSON(http.StatusOK, result)
}

func paramOrHeader(ctx echo.Context, param, header string) string {
	if value := ctx.QueryParam(param); value != "" {
		return value
	}
	return ctx.Request().Header.Get(header)
}

// reportInstall records a client-confirmed install of an update.
func (srv *Server) reportInstall(ctx echo.Context) error {
	updateID := ctx.Param("id")

	if err := srv.catalog.IncrementInstallCount(ctx.Request().Context(), updateID); err != nil {
		if errors.Is(err, catalog.ErrUpdateNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "update not found",
			})
		}
		log.Error().Err(err).Str("update_id", updateID).Msg("Failed to record install")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to record install",
		})
	}

	return ctx.NoContent(http.StatusNoContent)
}
