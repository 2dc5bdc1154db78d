package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"otacast/pkg/ingest"
	"otacast/pkg/log"

	"github.com/labstack/echo/v4"
)

// maxBundleSize caps an uploaded bundle archive.
const maxBundleSize = 1 << 30

func (srv *Server) publishBundle(ctx echo.Context) error {
	channelID, err := srv.channelByKey(ctx)
	if err != nil {
		return err
	}

	runtimeVersion := ctx.FormValue("runtimeVersion")
	if runtimeVersion == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "runtimeVersion is required",
		})
	}

	rolloutPercentage := 100
	if raw := ctx.FormValue("rolloutPercentage"); raw != "" {
		rolloutPercentage, err = strconv.Atoi(raw)
		if err != nil || rolloutPercentage < 0 || rolloutPercentage > 100 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "rolloutPercentage must be an integer in [0, 100]",
			})
		}
	}

	var metadata map[string]string
	if raw := ctx.FormValue("metadata"); raw != "" {
		if err = json.Unmarshal([]byte(raw), &metadata); err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "metadata must be a flat JSON string map",
			})
		}
	}

	file, err := ctx.FormFile("bundle")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "bundle parameter is required",
		})
	}
	if file.Size > maxBundleSize {
		return ctx.JSON(http.StatusRequestEntityTooLarge, map[string]string{
			"error": "bundle exceeds the size limit",
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded bundle")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open uploaded bundle",
		})
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close uploaded bundle")
		}
	}()

	bundle, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded bundle")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read uploaded bundle",
		})
	}

	upd, err := srv.ingestor.Ingest(ctx.Request().Context(), bundle, ingest.Params{
		ChannelID:         channelID,
		RuntimeVersion:    runtimeVersion,
		RolloutPercentage: rolloutPercentage,
		Metadata:          metadata,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidBundle) ||
			errors.Is(err, ingest.ErrEmptyBundle) ||
			errors.Is(err, ingest.ErrNoLaunchAsset) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		log.Error().Err(err).Msg("Failed to publish bundle")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to publish bundle",
		})
	}

	return ctx.JSON(http.StatusCreated, upd)
}
