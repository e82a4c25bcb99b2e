package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/runner"
	"github.com/seantiz/keeper/internal/screenshot"
)

type fakeSyncer struct {
	res cloudconfig.SyncResult
	err error
}

func (f fakeSyncer) Sync(context.Context) (cloudconfig.SyncResult, error) { return f.res, f.err }

type fakePruner struct{ got string }

func (f *fakePruner) Prune(_ context.Context, key string) (screenshot.PruneResult, error) {
	f.got = key
	return screenshot.PruneResult{AssetKey: key, Policy: screenshot.PolicyByCount, Kept: 1, Deleted: []int64{100, 200}}, nil
}

type fakeReplicator struct{ err error }

func (f fakeReplicator) Replicate(_ context.Context, key string) (offsite.Result, error) {
	return offsite.Result{AssetKey: key, Replicated: []int64{1, 2}, Skipped: []int64{}}, f.err
}

func collect(spec *runner.Spec) *[]string {
	var lines []string
	spec.LogWriter = func(line string) { lines = append(lines, line) }
	return &lines
}

func TestKindsDescribe(t *testing.T) {
	assert.Equal(t, model.KindCloudSync, runner.CloudSync{}.Describe().Kind)
	assert.False(t, runner.CloudSync{}.Describe().NeedsAsset)
	assert.Equal(t, model.KindScreenshotPrune, runner.ScreenshotPrune{}.Describe().Kind)
	assert.True(t, runner.ScreenshotPrune{}.Describe().NeedsAsset)
	assert.Equal(t, model.KindOffsiteReplicate, runner.OffsiteReplicate{}.Describe().Kind)
	assert.True(t, runner.OffsiteReplicate{}.Describe().NeedsAsset)
}

func TestCloudSyncRunner(t *testing.T) {
	r := runner.CloudSync{Syncer: fakeSyncer{res: cloudconfig.SyncResult{
		Pull: cloudconfig.PullResult{Status: cloudconfig.StatusApplied, Version: 7, Applied: []string{"deviceTimezone"}},
		Push: cloudconfig.PushResult{Status: cloudconfig.StatusSkipped, Version: 7},
	}}}
	spec := runner.Spec{Kind: model.KindCloudSync}
	lines := collect(&spec)

	res, err := r.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pull applied at version 7",
		"applied deviceTimezone",
		"push skipped at version 7",
	}, *lines)

	var out cloudconfig.SyncResult
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Equal(t, int64(7), out.Pull.Version)
}

func TestCloudSyncRunnerError(t *testing.T) {
	r := runner.CloudSync{Syncer: fakeSyncer{err: cloudconfig.ErrConflict}}
	_, err := r.Run(context.Background(), runner.Spec{})
	assert.ErrorIs(t, err, cloudconfig.ErrConflict)
}

func TestScreenshotPruneRunner(t *testing.T) {
	p := &fakePruner{}
	r := runner.ScreenshotPrune{Pruner: p}

	_, err := r.Run(context.Background(), runner.Spec{})
	assert.ErrorIs(t, err, runner.ErrAssetRequired)

	spec := runner.Spec{AssetKey: "web01"}
	lines := collect(&spec)
	_, err = r.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, "web01", p.got)
	assert.Equal(t, []string{
		"deleted screenshot web01@100",
		"deleted screenshot web01@200",
		"policy by-count kept 1, deleted 2",
	}, *lines)
}

func TestOffsiteReplicateRunner(t *testing.T) {
	spec := runner.Spec{AssetKey: "web01"}
	lines := collect(&spec)

	_, err := runner.OffsiteReplicate{Replicator: fakeReplicator{}}.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"replicated web01@1", "replicated web01@2", "replicated 2, skipped 0"}, *lines)

	_, err = runner.OffsiteReplicate{Replicator: fakeReplicator{err: errors.New("link down")}}.Run(context.Background(), spec)
	assert.EqualError(t, err, "link down")
}
