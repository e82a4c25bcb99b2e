package serializer

import "github.com/seantiz/keeper/internal/model"

// ScreenshotSettingsSerializer persists model.ScreenshotSettings.
type ScreenshotSettingsSerializer struct{}

var _ Serializer[model.ScreenshotSettings] = ScreenshotSettingsSerializer{}

func (ScreenshotSettingsSerializer) Serialize(s model.ScreenshotSettings) map[string]any {
	return map[string]any{
		"enabled": s.Enabled,
		"delay":   s.DelayS,
		"timeout": s.TimeoutS,
		"retain":  s.Retain,
	}
}

func (ScreenshotSettingsSerializer) Unserialize(m map[string]any) (model.ScreenshotSettings, error) {
	var s model.ScreenshotSettings
	var err error

	if s.Enabled, err = requireBool(m, "enabled"); err != nil {
		return s, err
	}
	if s.DelayS, err = requireInt(m, "delay"); err != nil {
		return s, err
	}
	if s.TimeoutS, err = requireInt(m, "timeout"); err != nil {
		return s, err
	}
	if s.Retain, err = optionalInt(m, "retain", 1); err != nil {
		return s, err
	}

	for _, f := range []struct {
		name string
		v    int
	}{{"delay", s.DelayS}, {"timeout", s.TimeoutS}, {"retain", s.Retain}} {
		if err := nonNegative(f.name, f.v); err != nil {
			return model.ScreenshotSettings{}, err
		}
	}
	return s, nil
}
