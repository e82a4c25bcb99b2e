package asset

import (
	"context"
	"sort"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/serializer"
)

// Kind reads and writes one kind of per-asset settings in its serialized
// form.
type Kind struct {
	Get func(ctx context.Context, key string) (map[string]any, error)
	Set func(ctx context.Context, key string, m map[string]any) (map[string]any, error)
}

func bind[T any](
	ser serializer.Serializer[T],
	get func(context.Context, string) (T, error),
	set func(context.Context, string, T) error,
) Kind {
	return Kind{
		Get: func(ctx context.Context, key string) (map[string]any, error) {
			v, err := get(ctx, key)
			if err != nil {
				return nil, err
			}
			return ser.Serialize(v), nil
		},
		Set: func(ctx context.Context, key string, m map[string]any) (map[string]any, error) {
			v, err := ser.Unserialize(m)
			if err != nil {
				return nil, err
			}
			if err := set(ctx, key, v); err != nil {
				return nil, err
			}
			return ser.Serialize(v), nil
		},
	}
}

// SettingsKinds returns the per-asset settings kinds keyed by file suffix.
func (s *Service) SettingsKinds() map[string]Kind {
	return map[string]Kind{
		SuffixScreenshot: bind[model.ScreenshotSettings](
			serializer.ScreenshotSettingsSerializer{}, s.ScreenshotSettings, s.SetScreenshotSettings),
		SuffixRetention: bind[model.RetentionSettings](
			serializer.RetentionSettingsSerializer{}, s.RetentionSettings, s.SetRetentionSettings),
		SuffixOffsite: bind[model.OffsiteSettings](
			serializer.OffsiteSettingsSerializer{}, s.OffsiteSettings, s.SetOffsiteSettings),
	}
}

// KindNames returns the settings kind names in lexical order.
func KindNames() []string {
	names := []string{SuffixScreenshot, SuffixRetention, SuffixOffsite}
	sort.Strings(names)
	return names
}
