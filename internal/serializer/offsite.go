package serializer

import "github.com/seantiz/keeper/internal/model"

// OffsiteSettingsSerializer persists model.OffsiteSettings.
type OffsiteSettingsSerializer struct{}

var _ Serializer[model.OffsiteSettings] = OffsiteSettingsSerializer{}

func (OffsiteSettingsSerializer) Serialize(o model.OffsiteSettings) map[string]any {
	m := map[string]any{
		"priority":              o.Priority,
		"replication":           o.Replication,
		"nightlyRetentionLimit": o.NightlyRetentionLimit,
	}
	if o.Replication == model.ReplicationInterval {
		m["interval"] = o.IntervalS
	}
	return m
}

func (OffsiteSettingsSerializer) Unserialize(m map[string]any) (model.OffsiteSettings, error) {
	var o model.OffsiteSettings
	var err error

	if o.Priority, err = requireString(m, "priority"); err != nil {
		return o, err
	}
	if err := oneOf("priority", o.Priority, model.PriorityLow, model.PriorityNormal, model.PriorityHigh); err != nil {
		return model.OffsiteSettings{}, err
	}

	if o.Replication, err = requireString(m, "replication"); err != nil {
		return o, err
	}
	if err := oneOf("replication", o.Replication,
		model.ReplicationAlways, model.ReplicationNever, model.ReplicationInterval); err != nil {
		return model.OffsiteSettings{}, err
	}

	if o.Replication == model.ReplicationInterval {
		if o.IntervalS, err = requireInt(m, "interval"); err != nil {
			return model.OffsiteSettings{}, err
		}
		if o.IntervalS <= 0 {
			return model.OffsiteSettings{}, InvalidFieldError{Field: "interval", Reason: "must be positive"}
		}
	}

	if o.NightlyRetentionLimit, err = optionalInt(m, "nightlyRetentionLimit", 0); err != nil {
		return model.OffsiteSettings{}, err
	}
	if err := nonNegative("nightlyRetentionLimit", o.NightlyRetentionLimit); err != nil {
		return model.OffsiteSettings{}, err
	}
	return o, nil
}
