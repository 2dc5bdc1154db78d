// Package ingest unpacks uploaded bundle archives into content-addressed
// assets and publishes them as a new update.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"otacast/pkg/assets"
	"otacast/pkg/catalog"
	"otacast/pkg/log"
	"otacast/pkg/models"
)

var (
	// ErrInvalidBundle marks archives that cannot be read as a zip.
	ErrInvalidBundle = errors.New("invalid bundle archive")
	// ErrNoLaunchAsset marks bundles with no recognizable entry point.
	ErrNoLaunchAsset = errors.New("bundle contains no launch asset")
	// ErrEmptyBundle marks archives with no usable files.
	ErrEmptyBundle = errors.New("bundle archive is empty")
)

// maxEntrySize caps a single decompressed archive entry.
const maxEntrySize = 256 << 20

// Ingestor turns uploaded zip bundles into stored updates.
type Ingestor struct {
	assets  *assets.Store
	catalog *catalog.Store
}

// Params describes one bundle publication.
type Params struct {
	ChannelID         int64
	RuntimeVersion    string
	RolloutPercentage int
	Metadata          map[string]string
}

// entry is one usable archive member after classification.
type entry struct {
	name        string
	platform    string
	content     []byte
	contentType string
	launch      bool
}

// New creates an Ingestor over the given asset and catalog stores.
func New(assetStore *assets.Store, catalogStore *catalog.Store) *Ingestor {
	return &Ingestor{assets: assetStore, catalog: catalogStore}
}

// Ingest unpacks the archive, stores every file as a content-addressed
// asset and creates the update with its join rows in one transaction. The
// update is rejected before becoming visible if no launch asset can be
// identified.
func (ing *Ingestor) Ingest(ctx context.Context, bundle []byte, params Params) (*models.Update, error) {
	entries, err := unpack(bundle)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyBundle
	}

	if !markLaunchAssets(entries) {
		return nil, ErrNoLaunchAsset
	}

	assetParams := make([]catalog.UpdateAssetParams, 0, len(entries))
	for _, ent := range entries {
		asset, err := ing.assets.Put(ctx, ent.content, ent.contentType)
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", ent.name, err)
		}
		assetParams = append(assetParams, catalog.UpdateAssetParams{
			AssetID:  asset.ID,
			Platform: ent.platform,
			IsLaunch: ent.launch,
			FileName: ent.name,
		})
	}

	upd, err := ing.catalog.CreateUpdate(ctx, catalog.CreateUpdateParams{
		ChannelID:         params.ChannelID,
		RuntimeVersion:    params.RuntimeVersion,
		RolloutPercentage: params.RolloutPercentage,
		Metadata:          params.Metadata,
		Assets:            assetParams,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("update_id", upd.ID).
		Str("runtime_version", params.RuntimeVersion).
		Int("assets", len(assetParams)).
		Msg("Bundle ingested")
	return upd, nil
}

// unpack reads the archive and classifies every usable file entry.
func unpack(bundle []byte) ([]*entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}

	var entries []*entry
	for _, file := range reader.File {
		name := path.Clean(file.Name)
		if file.FileInfo().IsDir() || skipEntry(name) {
			continue
		}

		content, err := readEntry(file)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidBundle, name, err)
		}

		entries = append(entries, &entry{
			name:        name,
			platform:    classifyPlatform(name),
			content:     content,
			contentType: detectContentType(name),
		})
	}
	return entries, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	content, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxEntrySize {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntrySize)
	}
	return content, nil
}

// skipEntry filters archive noise that should never become an asset.
func skipEntry(name string) bool {
	if name == "." || strings.HasPrefix(name, "..") || path.IsAbs(name) {
		return true
	}
	base := path.Base(name)
	if base == ".DS_Store" || base == "Thumbs.db" {
		return true
	}
	return hasSegment(name, "__MACOSX")
}

// classifyPlatform scopes an entry by its path: a literal ios or android
// path segment pins the platform, everything else is platform-neutral.
func classifyPlatform(name string) string {
	if hasSegment(name, models.PlatformIOS) {
		return models.PlatformIOS
	}
	if hasSegment(name, models.PlatformAndroid) {
		return models.PlatformAndroid
	}
	return models.PlatformNeutral
}

func hasSegment(name, segment string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// launchHeuristics is the ordered predicate chain for entry-point
// detection. Earlier entries win; the ordering is load-bearing for
// compatibility with already-published bundles.
var launchHeuristics = []func(*entry) bool{
	// Well-known entry point file names.
	func(e *entry) bool {
		base := path.Base(e.name)
		return base == "index.bundle" || base == "main.jsbundle"
	},
	// Platform-suffixed entry points, e.g. index.ios.bundle.
	func(e *entry) bool {
		base := path.Base(e.name)
		return base == "index.ios.bundle" || base == "index.android.bundle"
	},
	// Exported static JS convention path.
	func(e *entry) bool {
		return strings.Contains(e.name, "static/js/") && isScript(e.name)
	},
	// Any script outside web exports.
	func(e *entry) bool {
		return isScript(e.name) && !hasSegment(e.name, "web")
	},
}

func isScript(name string) bool {
	switch path.Ext(name) {
	case ".js", ".jsbundle", ".hbc", ".bundle":
		return true
	}
	return false
}

// markLaunchAssets picks at most one launch asset per platform scope using
// the heuristic chain, first hit per scope wins. Returns false when no
// scope resolved a launch asset at all.
func markLaunchAssets(entries []*entry) bool {
	found := false
	for _, platform := range []string{models.PlatformIOS, models.PlatformAndroid, models.PlatformNeutral} {
		if markLaunchFor(entries, platform) {
			found = true
		}
	}
	return found
}

func markLaunchFor(entries []*entry, platform string) bool {
	for _, heuristic := range launchHeuristics {
		for _, ent := range entries {
			if ent.platform != platform {
				continue
			}
			if heuristic(ent) {
				ent.launch = true
				return true
			}
		}
	}
	return false
}

// detectContentType maps an entry name to a MIME type. Bundle script
// extensions are not in the system MIME table and get pinned explicitly.
func detectContentType(name string) string {
	switch path.Ext(name) {
	case ".bundle", ".jsbundle":
		return "application/javascript"
	case ".hbc":
		return "application/octet-stream"
	}
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
