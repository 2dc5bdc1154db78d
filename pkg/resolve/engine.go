// Package resolve implements the manifest-check state machine: given what a
// device presents, decide deterministically whether it gets a rollback
// directive, nothing, or a signed manifest.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"otacast/pkg/catalog"
	"otacast/pkg/digest"
	"otacast/pkg/directive"
	"otacast/pkg/log"
	"otacast/pkg/models"
	"otacast/pkg/rollout"
	"otacast/pkg/signing"
)

// ErrUnknownChannel is returned when the presented channel key resolves to
// no enabled channel. This is a protocol-level failure, unlike the noUpdate
// and rollback outcomes which are ordinary results.
var ErrUnknownChannel = errors.New("unknown or disabled channel key")

// Engine orchestrates directive resolution, rollout matching, manifest
// assembly and signing. It is stateless per request; all state lives in the
// catalog and the blob store.
type Engine struct {
	catalog      *catalog.Store
	directives   *directive.Resolver
	assetBaseURL string
}

// NewEngine creates a resolution engine. assetBaseURL prefixes the asset
// hashes in manifest URLs (e.g. "/assets/").
func NewEngine(catalogStore *catalog.Store, resolver *directive.Resolver, assetBaseURL string) *Engine {
	return &Engine{
		catalog:      catalogStore,
		directives:   resolver,
		assetBaseURL: assetBaseURL,
	}
}

// Check runs the protocol state machine for one client request.
func (e *Engine) Check(ctx context.Context, req models.CheckRequest) (*models.CheckResult, error) {
	// 1. Resolve the channel from the presented key.
	channel, err := e.catalog.GetChannelByKey(ctx, req.ChannelKey)
	if errors.Is(err, catalog.ErrChannelNotFound) {
		return nil, ErrUnknownChannel
	}
	if err != nil {
		return nil, err
	}
	if !channel.IsEnabled {
		return nil, ErrUnknownChannel
	}

	// 2. An active directive pre-empts update delivery entirely, whatever
	// the rollout state says.
	active, err := e.directives.Active(ctx, channel.ID, req.RuntimeVersion)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return &models.CheckResult{
			Type: models.OutcomeRollback,
			Directive: &models.DirectivePayload{
				Type:       active.Type,
				Parameters: active.Parameters,
				Extra:      active.Extra,
			},
		}, nil
	}

	// 3. Candidates, newest first.
	candidates, err := e.catalog.ListEnabledUpdates(ctx, channel.ID, req.RuntimeVersion)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		update := &candidates[i]

		// 4. Per-candidate eligibility.
		rules, err := e.catalog.ListRules(ctx, update.ID)
		if err != nil {
			return nil, err
		}
		if !rollout.IsEligible(update, rules, rollout.Request{DeviceID: req.DeviceID}) {
			continue
		}

		// 6 (pulled early, defensively). A candidate without a resolvable
		// launch asset for this platform is broken data, not a client error:
		// skip it rather than serve a manifest the runtime cannot boot.
		manifest, ok, err := e.assembleManifest(ctx, update, req.Platform)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn().
				Str("update_id", update.ID).
				Str("platform", req.Platform).
				Str("runtime_version", req.RuntimeVersion).
				Msg("Skipping update without launch asset")
			continue
		}

		// 5. Identity short-circuit: the device already runs this update.
		if req.EmbeddedUpdateID != "" && req.EmbeddedUpdateID == update.ID {
			return &models.CheckResult{Type: models.OutcomeNoUpdate}, nil
		}

		result := &models.CheckResult{
			Type:     models.OutcomeUpdateAvailable,
			Manifest: manifest,
		}

		// 7. Sign the canonical manifest serialization when the channel has
		// a key pair; a channel without one skips signing, which is not an
		// error. A configured key that fails to sign is.
		if channel.SigningEnabled() {
			payload, err := json.Marshal(manifest)
			if err != nil {
				return nil, err
			}
			signature, err := signing.Sign(payload, channel.PrivateKeyPEM)
			if err != nil {
				log.Error().
					Err(err).
					Int64("channel_id", channel.ID).
					Str("update_id", update.ID).
					Msg("Manifest signing failed")
				return nil, err
			}
			result.Signature = signature
		}

		// 8. Out-of-band filters over the update metadata.
		result.ManifestFilters = signing.ManifestFilters(update.Metadata)

		// Counter bump is best-effort and never after cancellation.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := e.catalog.IncrementDownloadCount(ctx, update.ID); err != nil {
			log.Warn().Err(err).Str("update_id", update.ID).Msg("Failed to bump download counter")
		}

		return result, nil
	}

	// No enabled update, or none this device is eligible for.
	return &models.CheckResult{Type: models.OutcomeNoUpdate}, nil
}

// assembleManifest builds the manifest for an update on a platform.
// Platform-specific assets win over platform-neutral ones; ok is false when
// no launch asset resolves for the platform.
func (e *Engine) assembleManifest(ctx context.Context, update *models.Update, platform string) (*models.Manifest, bool, error) {
	infos, err := e.catalog.ListUpdateAssets(ctx, update.ID)
	if err != nil {
		return nil, false, err
	}

	var (
		launch        *models.ManifestAsset
		launchNeutral *models.ManifestAsset
		others        []models.ManifestAsset
	)

	for _, info := range infos {
		if info.Platform != platform && info.Platform != models.PlatformNeutral {
			continue
		}

		asset, err := manifestAsset(info, e.assetBaseURL)
		if err != nil {
			return nil, false, err
		}

		switch {
		case info.IsLaunch && info.Platform == platform:
			if launch == nil {
				launch = &asset
			}
		case info.IsLaunch:
			if launchNeutral == nil {
				launchNeutral = &asset
			}
		default:
			others = append(others, asset)
		}
	}

	if launch == nil {
		launch = launchNeutral
	}
	if launch == nil {
		return nil, false, nil
	}

	return &models.Manifest{
		ID:             update.ID,
		CreatedAt:      update.CreatedAt,
		RuntimeVersion: update.RuntimeVersion,
		Metadata:       update.Metadata,
		LaunchAsset:    *launch,
		Assets:         others,
	}, true, nil
}

func manifestAsset(info catalog.UpdateAssetInfo, baseURL string) (models.ManifestAsset, error) {
	d, ok := digest.ParseHex(info.Hash)
	if !ok {
		return models.ManifestAsset{}, fmt.Errorf("malformed stored digest %q", info.Hash)
	}
	return models.ManifestAsset{
		Key:         d.Key(),
		Hash:        info.Hash,
		ContentType: info.ContentType,
		FileName:    info.FileName,
		URL:         baseURL + info.Hash,
	}, nil
}
