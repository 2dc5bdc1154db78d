// Package directive resolves the override instruction, if any, governing a
// channel and runtime version. Directives pre-empt normal update delivery.
package directive

import (
	"context"
	"time"

	"otacast/pkg/catalog"
	"otacast/pkg/log"
	"otacast/pkg/models"
)

// Resolver finds the single active directive for a scope.
type Resolver struct {
	catalog *catalog.Store
	now     func() time.Time
}

// NewResolver creates a resolver over the catalog. The clock is injectable
// for tests.
func NewResolver(catalogStore *catalog.Store) *Resolver {
	return &Resolver{catalog: catalogStore, now: time.Now}
}

// WithClock overrides the resolver's clock. Test use only.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Active returns the directive currently governing (channelID,
// runtimeVersion), or nil when none applies. Expiry is evaluated lazily
// against the resolver's clock; when several directives are simultaneously
// active the most recently created wins. Deactivation and deletion take
// effect on the next call, with no caching in between.
func (r *Resolver) Active(ctx context.Context, channelID int64, runtimeVersion string) (*models.Directive, error) {
	d, err := r.catalog.ActiveDirective(ctx, channelID, runtimeVersion, r.now())
	if err != nil {
		return nil, err
	}
	if d != nil {
		log.Debug().
			Int64("channel_id", channelID).
			Str("runtime_version", runtimeVersion).
			Str("type", d.Type).
			Msg("Active directive found")
	}
	return d, nil
}
