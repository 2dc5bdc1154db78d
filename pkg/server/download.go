package server

import (
	"errors"
	"net/http"
	"strconv"

	"otacast/pkg/assets"
	"otacast/pkg/digest"
	"otacast/pkg/log"

	"github.com/labstack/echo/v4"
)

// Content at a digest can never change, so downloads are cacheable forever.
const assetCacheControl = "public, max-age=31536000, immutable"

func (srv *Server) downloadAsset(ctx echo.Context) error {
	hash := ctx.Param("hash")

	if !digest.ValidHex(hash) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid hash format",
		})
	}

	content, err := srv.assets.GetContent(ctx.Request().Context(), hash)
	if err != nil {
		var notFoundErr assets.NotFoundError
		if errors.As(err, &notFoundErr) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "asset not found",
			})
		}
		log.Error().Err(err).Str("hash", hash).Msg("Failed to read asset")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read asset",
		})
	}
	defer func() {
		if closeErr := content.Reader.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("hash", hash).Msg("Failed to close asset reader")
		}
	}()

	ctx.Response().Header().Set("Cache-Control", assetCacheControl)
	ctx.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(content.Size, 10))
	return ctx.Stream(http.StatusOK, content.ContentType, content.Reader)
}
