package offsite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/store"
)

type fixture struct {
	svc      *offsite.Service
	store    *store.SQLiteStore
	settings asset.Settings
	repl     *offsite.LogReplicator
}

func newFixture(t *testing.T, repl offsite.Replicator) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	settings := asset.NewSettings(afero.NewMemMapFs(), "/datto/config/keys")
	lr := offsite.NewLogReplicator(clockwork.NewFakeClock(), logger)
	if repl == nil {
		repl = lr
	}

	ctx := context.Background()
	require.NoError(t, st.CreateAsset(ctx, &model.Asset{Key: "web01", Type: model.AssetAgent, Name: "web01", CreatedAt: time.Now()}))
	for _, p := range []model.RecoveryPoint{
		{AssetKey: "web01", Epoch: 1000, Offsite: true},
		{AssetKey: "web01", Epoch: 2000},
		{AssetKey: "web01", Epoch: 2500},
		{AssetKey: "web01", Epoch: 5000},
	} {
		p.CreatedAt = time.Now()
		require.NoError(t, st.UpsertPoint(ctx, &p))
	}

	return &fixture{
		svc:      offsite.NewService(st, settings.Offsite, repl, logger),
		store:    st,
		settings: settings,
		repl:     lr,
	}
}

func offsiteEpochs(t *testing.T, st *store.SQLiteStore) []int64 {
	t.Helper()
	points, err := st.ListPoints(context.Background(), "web01")
	require.NoError(t, err)
	var out []int64
	for _, p := range points {
		if p.Offsite {
			out = append(out, p.Epoch)
		}
	}
	return out
}

func TestReplicateAlways(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Replicate(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, []int64{2000, 2500, 5000}, res.Replicated)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, []int64{1000, 2000, 2500, 5000}, offsiteEpochs(t, f.store))
	assert.Len(t, f.repl.Transfers(), 3)

	res, err = f.svc.Replicate(context.Background(), "web01")
	require.NoError(t, err)
	assert.Empty(t, res.Replicated)
}

func TestReplicateInterval(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.settings.Offsite.Save("web01", model.OffsiteSettings{
		Priority:    model.PriorityHigh,
		Replication: model.ReplicationInterval,
		IntervalS:   1000,
	}))

	res, err := f.svc.Replicate(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, []int64{2000, 5000}, res.Replicated)
	assert.Equal(t, []int64{2500}, res.Skipped)
}

func TestReplicateLimit(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.settings.Offsite.Save("web01", model.OffsiteSettings{
		Priority:              model.PriorityLow,
		Replication:           model.ReplicationAlways,
		NightlyRetentionLimit: 2,
	}))

	res, err := f.svc.Replicate(context.Background(), "web01")
	require.NoError(t, err)
	assert.Equal(t, []int64{2000, 2500}, res.Replicated)
	assert.Equal(t, []int64{5000}, res.Skipped)
}

func TestReplicateDisabled(t *testing.T) {
	ctx := context.Background()

	t.Run("never", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.settings.Offsite.Save("web01", model.OffsiteSettings{
			Priority:    model.PriorityNormal,
			Replication: model.ReplicationNever,
		}))
		_, err := f.svc.Replicate(ctx, "web01")
		assert.ErrorIs(t, err, offsite.ErrReplicationDisabled)
		assert.Empty(t, f.repl.Transfers())
	})

	t.Run("paused", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.store.UpdateAssetFlags(ctx, "web01", true, false))
		_, err := f.svc.Replicate(ctx, "web01")
		assert.ErrorIs(t, err, offsite.ErrReplicationDisabled)
	})

	t.Run("unknown asset", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Replicate(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

type failingReplicator struct{ failAt int64 }

func (r failingReplicator) Push(_ context.Context, _ string, epoch int64) error {
	if epoch == r.failAt {
		return errors.New("link down")
	}
	return nil
}

func TestReplicateStopsOnFailure(t *testing.T) {
	f := newFixture(t, failingReplicator{failAt: 2500})

	res, err := f.svc.Replicate(context.Background(), "web01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link down")
	assert.Equal(t, []int64{2000}, res.Replicated)
	assert.Equal(t, []int64{1000, 2000}, offsiteEpochs(t, f.store))
}

// mutatingReplicator changes the catalogue while a push is in flight.
type mutatingReplicator struct {
	t      *testing.T
	st     *store.SQLiteStore
	pushed []int64
}

func (r *mutatingReplicator) Push(ctx context.Context, assetKey string, epoch int64) error {
	r.pushed = append(r.pushed, epoch)
	switch epoch {
	case 2000:
		require.NoError(r.t, r.st.DeletePoint(ctx, assetKey, epoch))
	case 2500:
		p, err := r.st.GetPoint(ctx, assetKey, epoch)
		require.NoError(r.t, err)
		p.Locked = true
		require.NoError(r.t, r.st.UpsertPoint(ctx, p))
	}
	return nil
}

func TestReplicateKeepsConcurrentChanges(t *testing.T) {
	repl := &mutatingReplicator{t: t}
	f := newFixture(t, repl)
	repl.st = f.store
	ctx := context.Background()

	res, err := f.svc.Replicate(ctx, "web01")
	require.NoError(t, err)
	assert.Equal(t, []int64{2000, 2500, 5000}, repl.pushed)
	assert.Equal(t, []int64{2500, 5000}, res.Replicated)

	_, err = f.store.GetPoint(ctx, "web01", 2000)
	assert.ErrorIs(t, err, store.ErrNotFound, "deleted point must stay deleted")

	p, err := f.store.GetPoint(ctx, "web01", 2500)
	require.NoError(t, err)
	assert.True(t, p.Offsite)
	assert.True(t, p.Locked, "lock set during the push must survive")
}

func TestReplicateIntervalBackfillsOlderPoints(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.MarkPointOffsite(ctx, "web01", 5000))
	require.NoError(t, f.settings.Offsite.Save("web01", model.OffsiteSettings{
		Priority:    model.PriorityNormal,
		Replication: model.ReplicationInterval,
		IntervalS:   1000,
	}))

	res, err := f.svc.Replicate(ctx, "web01")
	require.NoError(t, err)
	assert.Equal(t, []int64{2000}, res.Replicated)
	assert.Equal(t, []int64{2500}, res.Skipped)
	assert.Equal(t, []int64{1000, 2000, 5000}, offsiteEpochs(t, f.store))
}
