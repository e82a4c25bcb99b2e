package serializer

import (
	"fmt"

	"github.com/seantiz/keeper/internal/model"
)

// CloudConfigSerializer persists the last cloud document seen by the device.
type CloudConfigSerializer struct{}

var _ Serializer[model.CloudDocument] = CloudConfigSerializer{}

func (CloudConfigSerializer) Serialize(d model.CloudDocument) map[string]any {
	settings := make(map[string]any, len(d.Settings))
	for k, v := range d.Settings {
		settings[k] = v
	}
	return map[string]any{
		"version":  d.Version,
		"schema":   d.Schema,
		"checksum": d.Checksum,
		"settings": settings,
	}
}

func (CloudConfigSerializer) Unserialize(m map[string]any) (model.CloudDocument, error) {
	var d model.CloudDocument

	version, err := requireInt(m, "version")
	if err != nil {
		return d, err
	}
	if err := nonNegative("version", version); err != nil {
		return d, err
	}
	d.Version = int64(version)

	if d.Schema, err = requireString(m, "schema"); err != nil {
		return model.CloudDocument{}, err
	}
	if d.Checksum, err = requireString(m, "checksum"); err != nil {
		return model.CloudDocument{}, err
	}

	d.Settings = map[string]string{}
	switch raw := m["settings"].(type) {
	case nil:
	case map[string]string:
		for k, v := range raw {
			d.Settings[k] = v
		}
	case map[string]any:
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return model.CloudDocument{}, InvalidFieldError{
					Field:  "settings." + k,
					Reason: fmt.Sprintf("expected string, got %T", v),
				}
			}
			d.Settings[k] = s
		}
	default:
		return model.CloudDocument{}, InvalidFieldError{
			Field:  "settings",
			Reason: fmt.Sprintf("expected object, got %T", raw),
		}
	}
	return d, nil
}
