package screenshot

import (
	"errors"
	"fmt"

	"github.com/seantiz/keeper/internal/model"
)

// Policy names.
const (
	PolicyNone    = "none"
	PolicyByCount = "by-count"
)

// ErrUnsupportedPolicy is returned by Configure for unknown policy names.
var ErrUnsupportedPolicy = errors.New("unsupported screenshot retention policy")

// Policy selects the screenshots of one asset that should be deleted.
type Policy interface {
	Name() string
	Select(r MatchResult) []model.Screenshot
}

// Configure builds the named policy from the asset's screenshot settings.
func Configure(name string, settings model.ScreenshotSettings) (Policy, error) {
	switch name {
	case PolicyNone:
		return NonePolicy{}, nil
	case PolicyByCount, "":
		keep := settings.Retain
		if keep < 1 {
			keep = 1
		}
		return ByCountPolicy{Keep: keep}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)", ErrUnsupportedPolicy, name, PolicyNone, PolicyByCount)
	}
}

// NonePolicy keeps every screenshot that still has a point.
type NonePolicy struct{}

func (NonePolicy) Name() string { return PolicyNone }

func (NonePolicy) Select(r MatchResult) []model.Screenshot {
	return append([]model.Screenshot{}, r.Orphans...)
}

// ByCountPolicy keeps the newest Keep screenshots that still have a point.
// The newest successful screenshot is always kept, even when older than the
// window, so the asset never loses its last proof of a bootable point.
type ByCountPolicy struct {
	Keep int
}

func (ByCountPolicy) Name() string { return PolicyByCount }

func (p ByCountPolicy) Select(r MatchResult) []model.Screenshot {
	victims := append([]model.Screenshot{}, r.Orphans...)

	verified := r.Verified()
	for i, m := range verified {
		if i >= len(verified)-p.Keep {
			break
		}
		if r.LatestVerified != nil && m.Point.Epoch == r.LatestVerified.Epoch {
			continue
		}
		victims = append(victims, *m.Screenshot)
	}
	return victims
}
