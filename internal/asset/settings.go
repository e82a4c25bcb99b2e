package asset

import (
	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/serializer"
	"github.com/seantiz/keeper/internal/settings"
)

// Settings file suffixes under the settings root.
const (
	SuffixScreenshot = "screenshot"
	SuffixRetention  = "retention"
	SuffixOffsite    = "offsite"
)

// NewSettings wires the per-asset settings repositories under root.
func NewSettings(fs afero.Fs, root string) Settings {
	return Settings{
		Screenshot: settings.NewRepository[model.ScreenshotSettings](fs, root, SuffixScreenshot, serializer.ScreenshotSettingsSerializer{}),
		Retention:  settings.NewRepository[model.RetentionSettings](fs, root, SuffixRetention, serializer.RetentionSettingsSerializer{}),
		Offsite:    settings.NewRepository[model.OffsiteSettings](fs, root, SuffixOffsite, serializer.OffsiteSettingsSerializer{}),
	}
}
