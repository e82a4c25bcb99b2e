package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/offsite"
	"github.com/seantiz/keeper/internal/screenshot"
)

// ErrAssetRequired is returned when a per-asset job is run without an asset.
var ErrAssetRequired = errors.New("job requires an asset key")

// Syncer is implemented by cloudconfig.Service.
type Syncer interface {
	Sync(ctx context.Context) (cloudconfig.SyncResult, error)
}

// Pruner is implemented by screenshot.Service.
type Pruner interface {
	Prune(ctx context.Context, assetKey string) (screenshot.PruneResult, error)
}

// Replicator is implemented by offsite.Service.
type Replicator interface {
	Replicate(ctx context.Context, assetKey string) (offsite.Result, error)
}

// CloudSync runs a full pull/push exchange with the portal.
type CloudSync struct{ Syncer Syncer }

func (CloudSync) Describe() Info {
	return Info{Kind: model.KindCloudSync, Description: "pull and push cloud-managed device config"}
}

func (r CloudSync) Run(ctx context.Context, spec Spec) (Result, error) {
	res, err := r.Syncer.Sync(ctx)
	if err != nil {
		return Result{}, err
	}
	spec.Logf("pull %s at version %d", res.Pull.Status, res.Pull.Version)
	if len(res.Pull.Applied) > 0 {
		spec.Logf("applied %s", strings.Join(res.Pull.Applied, ", "))
	}
	if len(res.Pull.Cleared) > 0 {
		spec.Logf("cleared %s", strings.Join(res.Pull.Cleared, ", "))
	}
	if len(res.Pull.Rejected) > 0 {
		spec.Logf("ignored unmanaged keys %s", strings.Join(res.Pull.Rejected, ", "))
	}
	if res.Pull.Reason != "" {
		spec.Logf("reason: %s", res.Pull.Reason)
	}
	spec.Logf("push %s at version %d", res.Push.Status, res.Push.Version)
	return encode(res)
}

// ScreenshotPrune applies screenshot retention to one asset.
type ScreenshotPrune struct{ Pruner Pruner }

func (ScreenshotPrune) Describe() Info {
	return Info{Kind: model.KindScreenshotPrune, Description: "apply screenshot retention to an asset", NeedsAsset: true}
}

func (r ScreenshotPrune) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.AssetKey == "" {
		return Result{}, ErrAssetRequired
	}
	res, err := r.Pruner.Prune(ctx, spec.AssetKey)
	if err != nil {
		return Result{}, err
	}
	for _, epoch := range res.Deleted {
		spec.Logf("deleted screenshot %s@%d", spec.AssetKey, epoch)
	}
	spec.Logf("policy %s kept %d, deleted %d", res.Policy, res.Kept, len(res.Deleted))
	return encode(res)
}

// OffsiteReplicate sends an asset's pending points offsite.
type OffsiteReplicate struct{ Replicator Replicator }

func (OffsiteReplicate) Describe() Info {
	return Info{Kind: model.KindOffsiteReplicate, Description: "replicate an asset's recovery points offsite", NeedsAsset: true}
}

func (r OffsiteReplicate) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.AssetKey == "" {
		return Result{}, ErrAssetRequired
	}
	res, err := r.Replicator.Replicate(ctx, spec.AssetKey)
	for _, epoch := range res.Replicated {
		spec.Logf("replicated %s@%d", spec.AssetKey, epoch)
	}
	if err != nil {
		return Result{}, err
	}
	spec.Logf("replicated %d, skipped %d", len(res.Replicated), len(res.Skipped))
	return encode(res)
}

func encode(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}
	return Result{Output: string(data)}, nil
}
