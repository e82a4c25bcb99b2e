package model

// Offsite priority constants.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Offsite replication mode constants.
const (
	ReplicationAlways   = "always"
	ReplicationNever    = "never"
	ReplicationInterval = "interval"
)

// ScreenshotSettings controls boot verification of an asset's recovery points.
type ScreenshotSettings struct {
	Enabled  bool
	DelayS   int
	TimeoutS int
	Retain   int
}

// DefaultScreenshotSettings is used for assets that never saved their own.
func DefaultScreenshotSettings() ScreenshotSettings {
	return ScreenshotSettings{Enabled: true, DelayS: 0, TimeoutS: 300, Retain: 1}
}

// RetentionSettings holds local retention windows in hours.
type RetentionSettings struct {
	Daily   int
	Weekly  int
	Monthly int
	Maximum int
}

// OffsiteSettings controls replication of an asset's points to the cloud.
type OffsiteSettings struct {
	Priority              string
	Replication           string
	IntervalS             int
	NightlyRetentionLimit int
}

// DefaultOffsiteSettings is used for assets that never saved their own.
func DefaultOffsiteSettings() OffsiteSettings {
	return OffsiteSettings{Priority: PriorityNormal, Replication: ReplicationAlways}
}

// CloudDocument is the cloud-managed device configuration exchanged with the portal.
type CloudDocument struct {
	Version  int64             `json:"version"`
	Schema   string            `json:"schema"`
	Checksum string            `json:"checksum"`
	Settings map[string]string `json:"settings"`
}
