package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"otacast/pkg/models"
)

// StoreTestSuite tests the catalog Store functionality.
type StoreTestSuite struct {
	suite.Suite
	tempDir string
	dbPath  string
	store   *Store
	ctx     context.Context
}

// SetupSuite runs once before all tests.
func (s *StoreTestSuite) SetupSuite() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "catalog-store-test-*")
	s.Require().NoError(err)
	s.ctx = context.Background()
}

// TearDownSuite runs once after all tests.
func (s *StoreTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

// SetupTest runs before each test.
func (s *StoreTestSuite) SetupTest() {
	s.dbPath = filepath.Join(s.tempDir, "test.db")
	var err error
	s.store, err = NewStore(s.dbPath)
	s.Require().NoError(err)
}

// TearDownTest runs after each test.
func (s *StoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
	os.Remove(s.dbPath)
}

func (s *StoreTestSuite) createChannel() *models.Channel {
	ch, err := s.store.CreateChannel(s.ctx, "demo-project", "production")
	s.Require().NoError(err)
	return ch
}

func (s *StoreTestSuite) createAsset(hash string) *models.Asset {
	asset, _, err := s.store.UpsertAsset(s.ctx, hash, 128, "application/javascript")
	s.Require().NoError(err)
	return asset
}

const testHash = "a1b2c3d4e5f67890123456789abcdef0123456789abcdef0123456789abcdef0"

// TestCreateChannel tests channel creation and key issuance.
func (s *StoreTestSuite) TestCreateChannel() {
	ch := s.createChannel()
	s.NotEmpty(ch.Key)
	s.True(ch.IsEnabled)
	s.False(ch.IsDeleted)

	got, err := s.store.GetChannelByKey(s.ctx, ch.Key)
	s.Require().NoError(err)
	s.Equal(ch.ID, got.ID)
}

// TestGetChannelByKeyUnknown tests lookup with an unknown key.
func (s *StoreTestSuite) TestGetChannelByKeyUnknown() {
	_, err := s.store.GetChannelByKey(s.ctx, "no-such-key")
	s.ErrorIs(err, ErrChannelNotFound)
}

// TestRegenerateChannelKey tests that regeneration invalidates the old key.
func (s *StoreTestSuite) TestRegenerateChannelKey() {
	ch := s.createChannel()

	newKey, err := s.store.RegenerateChannelKey(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.NotEqual(ch.Key, newKey)

	_, err = s.store.GetChannelByKey(s.ctx, ch.Key)
	s.ErrorIs(err, ErrChannelNotFound)

	got, err := s.store.GetChannelByKey(s.ctx, newKey)
	s.Require().NoError(err)
	s.Equal(ch.ID, got.ID)
}

// TestSoftDeleteChannel tests that soft-deleted channels disappear from key
// lookup but keep their row.
func (s *StoreTestSuite) TestSoftDeleteChannel() {
	ch := s.createChannel()

	s.Require().NoError(s.store.SoftDeleteChannel(s.ctx, ch.ID))

	_, err := s.store.GetChannelByKey(s.ctx, ch.Key)
	s.ErrorIs(err, ErrChannelNotFound)

	got, err := s.store.GetChannel(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.True(got.IsDeleted)
}

// TestSetChannelSigningKeys tests setting and clearing the signing key pair.
func (s *StoreTestSuite) TestSetChannelSigningKeys() {
	ch := s.createChannel()

	s.Require().NoError(s.store.SetChannelSigningKeys(s.ctx, ch.ID, "pub-pem", "priv-pem"))
	got, err := s.store.GetChannelByKey(s.ctx, ch.Key)
	s.Require().NoError(err)
	s.True(got.SigningEnabled())
	s.Equal("pub-pem", got.PublicKeyPEM)

	s.Require().NoError(s.store.SetChannelSigningKeys(s.ctx, ch.ID, "", ""))
	got, err = s.store.GetChannelByKey(s.ctx, ch.Key)
	s.Require().NoError(err)
	s.False(got.SigningEnabled())
}

// TestUpsertAssetDedup tests that identical digests share one row.
func (s *StoreTestSuite) TestUpsertAssetDedup() {
	first, created, err := s.store.UpsertAsset(s.ctx, testHash, 128, "application/javascript")
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.store.UpsertAsset(s.ctx, testHash, 999, "text/plain")
	s.Require().NoError(err)
	s.False(created)

	// Existing record returned unchanged: no size/type re-validation.
	s.Equal(first.ID, second.ID)
	s.Equal(int64(128), second.Size)
	s.Equal("application/javascript", second.ContentType)
}

// TestGetAssetByHashUnknown tests asset lookup for a missing digest.
func (s *StoreTestSuite) TestGetAssetByHashUnknown() {
	_, err := s.store.GetAssetByHash(s.ctx, testHash)
	s.ErrorIs(err, ErrAssetNotFound)
}

// TestCreateUpdateWithAssets tests transactional update creation.
func (s *StoreTestSuite) TestCreateUpdateWithAssets() {
	ch := s.createChannel()
	asset := s.createAsset(testHash)

	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{
		ChannelID:         ch.ID,
		RuntimeVersion:    "1.0.0",
		RolloutPercentage: 100,
		Metadata:          map[string]string{"branch": "main"},
		Assets: []UpdateAssetParams{
			{AssetID: asset.ID, Platform: models.PlatformIOS, IsLaunch: true, FileName: "index.bundle"},
		},
	})
	s.Require().NoError(err)
	s.NotEmpty(upd.ID)

	got, err := s.store.GetUpdate(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Equal("1.0.0", got.RuntimeVersion)
	s.Equal(map[string]string{"branch": "main"}, got.Metadata)

	infos, err := s.store.ListUpdateAssets(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Require().Len(infos, 1)
	s.Equal(testHash, infos[0].Hash)
	s.True(infos[0].IsLaunch)
	s.Equal(models.PlatformIOS, infos[0].Platform)
}

// TestListEnabledUpdatesOrder tests newest-first candidate ordering and the
// enabled filter.
func (s *StoreTestSuite) TestListEnabledUpdatesOrder() {
	ch := s.createChannel()

	var ids []string
	for range 3 {
		upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{
			ChannelID:         ch.ID,
			RuntimeVersion:    "1.0.0",
			RolloutPercentage: 100,
		})
		s.Require().NoError(err)
		ids = append(ids, upd.ID)
	}

	s.Require().NoError(s.store.SetUpdateEnabled(s.ctx, ids[1], false))

	updates, err := s.store.ListEnabledUpdates(s.ctx, ch.ID, "1.0.0")
	s.Require().NoError(err)
	s.Require().Len(updates, 2)
	s.Equal(ids[2], updates[0].ID)
	s.Equal(ids[0], updates[1].ID)

	// A different runtime version has no candidates.
	updates, err = s.store.ListEnabledUpdates(s.ctx, ch.ID, "2.0.0")
	s.Require().NoError(err)
	s.Empty(updates)
}

// TestSetUpdateRolloutValidation tests percentage bounds.
func (s *StoreTestSuite) TestSetUpdateRolloutValidation() {
	ch := s.createChannel()
	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{ChannelID: ch.ID, RuntimeVersion: "1.0.0", RolloutPercentage: 100})
	s.Require().NoError(err)

	s.ErrorIs(s.store.SetUpdateRollout(s.ctx, upd.ID, 101), ErrInvalidRule)
	s.ErrorIs(s.store.SetUpdateRollout(s.ctx, upd.ID, -1), ErrInvalidRule)
	s.NoError(s.store.SetUpdateRollout(s.ctx, upd.ID, 25))

	got, err := s.store.GetUpdate(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Equal(25, got.RolloutPercentage)
}

// TestCounters tests the download/install counters.
func (s *StoreTestSuite) TestCounters() {
	ch := s.createChannel()
	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{ChannelID: ch.ID, RuntimeVersion: "1.0.0", RolloutPercentage: 100})
	s.Require().NoError(err)

	s.Require().NoError(s.store.IncrementDownloadCount(s.ctx, upd.ID))
	s.Require().NoError(s.store.IncrementDownloadCount(s.ctx, upd.ID))
	s.Require().NoError(s.store.IncrementInstallCount(s.ctx, upd.ID))

	got, err := s.store.GetUpdate(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), got.DownloadCount)
	s.Equal(int64(1), got.InstallCount)
}

// TestRuleOrdering tests priority-descending, creation-order evaluation order.
func (s *StoreTestSuite) TestRuleOrdering() {
	ch := s.createChannel()
	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{ChannelID: ch.ID, RuntimeVersion: "1.0.0", RolloutPercentage: 100})
	s.Require().NoError(err)

	low, err := s.store.CreateRule(s.ctx, upd.ID, models.RuleTypePercentage, models.RuleValue{Percentage: 10}, 50, true)
	s.Require().NoError(err)
	high, err := s.store.CreateRule(s.ctx, upd.ID, models.RuleTypeDeviceID, models.RuleValue{Include: []string{"device-a"}}, 100, true)
	s.Require().NoError(err)
	tied, err := s.store.CreateRule(s.ctx, upd.ID, models.RuleTypePercentage, models.RuleValue{Percentage: 20}, 50, true)
	s.Require().NoError(err)

	rules, err := s.store.ListRules(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Require().Len(rules, 3)
	s.Equal(high.ID, rules[0].ID)
	s.Equal(low.ID, rules[1].ID)
	s.Equal(tied.ID, rules[2].ID)
	s.Equal([]string{"device-a"}, rules[0].Value.Include)
}

// TestCreateRuleValidation tests boundary rejection of malformed rule values.
func (s *StoreTestSuite) TestCreateRuleValidation() {
	ch := s.createChannel()
	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{ChannelID: ch.ID, RuntimeVersion: "1.0.0", RolloutPercentage: 100})
	s.Require().NoError(err)

	_, err = s.store.CreateRule(s.ctx, upd.ID, models.RuleTypePercentage, models.RuleValue{Percentage: 200}, 0, true)
	s.ErrorIs(err, ErrInvalidRule)

	_, err = s.store.CreateRule(s.ctx, upd.ID, models.RuleTypeDeviceID, models.RuleValue{}, 0, true)
	s.ErrorIs(err, ErrInvalidRule)

	_, err = s.store.CreateRule(s.ctx, upd.ID, "geo_fence", models.RuleValue{}, 0, true)
	s.ErrorIs(err, ErrInvalidRule)

	rules, err := s.store.ListRules(s.ctx, upd.ID)
	s.Require().NoError(err)
	s.Empty(rules)
}

// TestDeleteRule tests rule removal.
func (s *StoreTestSuite) TestDeleteRule() {
	ch := s.createChannel()
	upd, err := s.store.CreateUpdate(s.ctx, CreateUpdateParams{ChannelID: ch.ID, RuntimeVersion: "1.0.0", RolloutPercentage: 100})
	s.Require().NoError(err)

	rule, err := s.store.CreateRule(s.ctx, upd.ID, models.RuleTypePercentage, models.RuleValue{Percentage: 50}, 0, true)
	s.Require().NoError(err)

	s.NoError(s.store.DeleteRule(s.ctx, rule.ID))
	s.ErrorIs(s.store.DeleteRule(s.ctx, rule.ID), ErrRuleNotFound)
}

// TestActiveDirective tests the active-directive lookup with expiry and
// activation filters.
func (s *StoreTestSuite) TestActiveDirective() {
	ch := s.createChannel()
	now := time.Now().UTC()

	d, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID:      ch.ID,
		RuntimeVersion: "1.0.0",
		Type:           models.DirectiveRollBackToEmbedded,
		Parameters:     map[string]string{"reason": "bad release"},
	})
	s.Require().NoError(err)

	got, err := s.store.ActiveDirective(s.ctx, ch.ID, "1.0.0", now)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(d.ID, got.ID)
	s.Equal("bad release", got.Parameters["reason"])

	// Other scope has none.
	got, err = s.store.ActiveDirective(s.ctx, ch.ID, "2.0.0", now)
	s.Require().NoError(err)
	s.Nil(got)
}

// TestActiveDirectiveExpiry tests lazy expiry evaluation at read time.
func (s *StoreTestSuite) TestActiveDirectiveExpiry() {
	ch := s.createChannel()
	past := time.Now().UTC().Add(-time.Hour)

	_, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID:      ch.ID,
		RuntimeVersion: "1.0.0",
		Type:           models.DirectiveRollBackToEmbedded,
		ExpiresAt:      &past,
	})
	s.Require().NoError(err)

	got, err := s.store.ActiveDirective(s.ctx, ch.ID, "1.0.0", time.Now().UTC())
	s.Require().NoError(err)
	s.Nil(got)

	// The row itself is untouched: expiry is derived, not stored.
	directives, err := s.store.ListDirectives(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Require().Len(directives, 1)
	s.True(directives[0].IsActive)
}

// TestActiveDirectiveTieBreak tests that with several simultaneously active
// directives, the most recently created one wins.
func (s *StoreTestSuite) TestActiveDirectiveTieBreak() {
	ch := s.createChannel()

	_, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID: ch.ID, RuntimeVersion: "1.0.0", Type: models.DirectiveRollBackToEmbedded,
	})
	s.Require().NoError(err)

	second, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID: ch.ID, RuntimeVersion: "1.0.0", Type: models.DirectiveRollBackToEmbedded,
	})
	s.Require().NoError(err)

	got, err := s.store.ActiveDirective(s.ctx, ch.ID, "1.0.0", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(second.ID, got.ID)
}

// TestDeactivateDirective tests that deactivation takes effect immediately.
func (s *StoreTestSuite) TestDeactivateDirective() {
	ch := s.createChannel()
	d, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID: ch.ID, RuntimeVersion: "1.0.0", Type: models.DirectiveRollBackToEmbedded,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.DeactivateDirective(s.ctx, d.ID))

	got, err := s.store.ActiveDirective(s.ctx, ch.ID, "1.0.0", time.Now().UTC())
	s.Require().NoError(err)
	s.Nil(got)
}

// TestDeleteDirective tests directive deletion.
func (s *StoreTestSuite) TestDeleteDirective() {
	ch := s.createChannel()
	d, err := s.store.CreateDirective(s.ctx, CreateDirectiveParams{
		ChannelID: ch.ID, RuntimeVersion: "1.0.0", Type: models.DirectiveRollBackToEmbedded,
	})
	s.Require().NoError(err)

	s.NoError(s.store.DeleteDirective(s.ctx, d.ID))
	s.ErrorIs(s.store.DeleteDirective(s.ctx, d.ID), ErrDirectiveNotFound)

	directives, err := s.store.ListDirectives(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Empty(directives)
}

// TestStoreSuite runs the suite.
func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
