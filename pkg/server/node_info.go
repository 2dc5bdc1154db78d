package server

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"otacast/pkg/log"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// NodeInfo is the operator-facing health snapshot of the node.
type NodeInfo struct {
	Version       string      `json:"version"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Storage       StorageInfo `json:"storage"`
}

// StorageInfo reports disk usage of the data directory.
type StorageInfo struct {
	Total          uint64 `json:"total"`
	Used           uint64 `json:"used"`
	Available      uint64 `json:"available"`
	AvailableHuman string `json:"available_human"`
}

// getNodeInfo handles the GET /node/info endpoint.
func (srv *Server) getNodeInfo(ctx echo.Context) error {
	uptime, err := readUptime()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read system uptime")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to collect node information",
		})
	}

	storage, err := readStorageInfo(srv.dataDir)
	if err != nil {
		log.Error().Err(err).Str("data_dir", srv.dataDir).Msg("Failed to stat data directory")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to collect node information",
		})
	}

	return ctx.JSON(http.StatusOK, &NodeInfo{
		Version:       srv.version,
		Uptime:        formatUptime(uptime),
		UptimeSeconds: uptime,
		Storage:       *storage,
	})
}

// readUptime reads system uptime from /proc/uptime.
func readUptime() (int64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}

	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, nil
	}

	uptimeFloat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	return int64(uptimeFloat), nil
}

// readStorageInfo gets disk usage for the data directory.
func readStorageInfo(path string) (*StorageInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, err
	}

	blockSize := uint64(stat.Bsize) // #nosec G115 - syscall values are system dependent
	total := stat.Blocks * blockSize
	available := stat.Bavail * blockSize

	return &StorageInfo{
		Total:          total,
		Used:           total - available,
		Available:      available,
		AvailableHuman: humanize.Bytes(available),
	}, nil
}

// formatUptime converts seconds to human-readable format.
func formatUptime(seconds int64) string {
	duration := time.Duration(seconds) * time.Second
	const hoursInDay = 24
	const minutesInHour = 60
	days := int(duration.Hours()) / hoursInDay
	hours := int(duration.Hours()) % hoursInDay
	minutes := int(duration.Minutes()) % minutesInHour

	switch {
	case days > 0:
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	case hours > 0:
		return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	default:
		return strconv.Itoa(minutes) + "m"
	}
}
