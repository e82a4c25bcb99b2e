package serializer

import "github.com/seantiz/keeper/internal/model"

// RetentionSettingsSerializer persists model.RetentionSettings. The windows
// must widen from daily to maximum.
type RetentionSettingsSerializer struct{}

var _ Serializer[model.RetentionSettings] = RetentionSettingsSerializer{}

func (RetentionSettingsSerializer) Serialize(r model.RetentionSettings) map[string]any {
	return map[string]any{
		"daily":   r.Daily,
		"weekly":  r.Weekly,
		"monthly": r.Monthly,
		"maximum": r.Maximum,
	}
}

func (RetentionSettingsSerializer) Unserialize(m map[string]any) (model.RetentionSettings, error) {
	names := []string{"daily", "weekly", "monthly", "maximum"}
	values := make([]int, len(names))

	for i, name := range names {
		v, err := requireInt(m, name)
		if err != nil {
			return model.RetentionSettings{}, err
		}
		if err := nonNegative(name, v); err != nil {
			return model.RetentionSettings{}, err
		}
		if i > 0 && v < values[i-1] {
			return model.RetentionSettings{}, InvalidFieldError{
				Field:  name,
				Reason: "must not be shorter than " + names[i-1],
			}
		}
		values[i] = v
	}

	return model.RetentionSettings{
		Daily:   values[0],
		Weekly:  values[1],
		Monthly: values[2],
		Maximum: values[3],
	}, nil
}
