package screenshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/keeper/internal/model"
)

func points(epochs ...int64) []model.RecoveryPoint {
	out := make([]model.RecoveryPoint, len(epochs))
	for i, e := range epochs {
		out[i] = model.RecoveryPoint{AssetKey: "web01", Epoch: e}
	}
	return out
}

func shot(epoch int64, status string) model.Screenshot {
	return model.Screenshot{AssetKey: "web01", SnapshotEpoch: epoch, Status: status}
}

func epochsOf(shots []model.Screenshot) []int64 {
	out := []int64{}
	for _, s := range shots {
		out = append(out, s.SnapshotEpoch)
	}
	return out
}

func TestMatchPointsPairsByEpoch(t *testing.T) {
	r := MatchPoints(
		points(300, 100, 200),
		[]model.Screenshot{shot(200, model.ScreenshotSuccess), shot(50, model.ScreenshotFailure), shot(300, model.ScreenshotFailure)},
	)

	require.Len(t, r.Matches, 3)
	assert.Equal(t, int64(100), r.Matches[0].Point.Epoch)
	assert.Nil(t, r.Matches[0].Screenshot)
	require.NotNil(t, r.Matches[1].Screenshot)
	assert.Equal(t, int64(200), r.Matches[1].Screenshot.SnapshotEpoch)
	require.NotNil(t, r.Matches[2].Screenshot)

	assert.Equal(t, []int64{50}, epochsOf(r.Orphans))

	require.NotNil(t, r.LatestVerified)
	assert.Equal(t, int64(200), r.LatestVerified.Epoch, "failed screenshot on 300 must not count as verified")
	assert.Len(t, r.Verified(), 2)
}

func TestMatchPointsEmpty(t *testing.T) {
	r := MatchPoints(nil, nil)
	assert.Empty(t, r.Matches)
	assert.Empty(t, r.Orphans)
	assert.Nil(t, r.LatestVerified)
}

func TestByCountKeepsNewest(t *testing.T) {
	r := MatchPoints(
		points(1, 2, 3, 4),
		[]model.Screenshot{
			shot(1, model.ScreenshotFailure),
			shot(2, model.ScreenshotFailure),
			shot(3, model.ScreenshotFailure),
			shot(4, model.ScreenshotFailure),
		},
	)

	victims := ByCountPolicy{Keep: 2}.Select(r)
	assert.Equal(t, []int64{1, 2}, epochsOf(victims))
}

func TestByCountKeepsLatestSuccess(t *testing.T) {
	r := MatchPoints(
		points(1, 2, 3, 4),
		[]model.Screenshot{
			shot(1, model.ScreenshotSuccess),
			shot(2, model.ScreenshotSuccess),
			shot(3, model.ScreenshotFailure),
			shot(4, model.ScreenshotFailure),
			shot(9, model.ScreenshotSuccess),
		},
	)

	victims := ByCountPolicy{Keep: 1}.Select(r)
	assert.Equal(t, []int64{9, 1, 3}, epochsOf(victims))
}

func TestNonePolicyOnlyOrphans(t *testing.T) {
	r := MatchPoints(points(1, 2), []model.Screenshot{shot(1, model.ScreenshotSuccess), shot(7, model.ScreenshotSuccess)})
	assert.Equal(t, []int64{7}, epochsOf(NonePolicy{}.Select(r)))
}

func TestConfigure(t *testing.T) {
	p, err := Configure(PolicyByCount, model.ScreenshotSettings{Retain: 0})
	require.NoError(t, err)
	assert.Equal(t, ByCountPolicy{Keep: 1}, p)

	p, err = Configure("", model.ScreenshotSettings{Retain: 5})
	require.NoError(t, err)
	assert.Equal(t, PolicyByCount, p.Name())

	p, err = Configure(PolicyNone, model.ScreenshotSettings{})
	require.NoError(t, err)
	assert.Equal(t, PolicyNone, p.Name())

	_, err = Configure("by-age", model.ScreenshotSettings{})
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)
}
