package model

import "time"

// Asset type constants.
const (
	AssetAgent = "agent"
	AssetShare = "share"
)

// Screenshot status constants.
const (
	ScreenshotSuccess = "success"
	ScreenshotFailure = "failure"
)

// ValidAssetType reports whether t names a supported asset type.
func ValidAssetType(t string) bool {
	return t == AssetAgent || t == AssetShare
}

// Asset is a backup target registered with the appliance.
type Asset struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Hostname  string    `json:"hostname,omitempty"`
	OS        string    `json:"os,omitempty"`
	Paused    bool      `json:"paused"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoveryPoint is a timestamped backup snapshot of an asset.
type RecoveryPoint struct {
	AssetKey  string    `json:"asset_key"`
	Epoch     int64     `json:"epoch"`
	SizeBytes int64     `json:"size_bytes"`
	Offsite   bool      `json:"offsite"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
}

// Screenshot is the outcome of a boot verification of a recovery point.
type Screenshot struct {
	AssetKey      string    `json:"asset_key"`
	SnapshotEpoch int64     `json:"snapshot_epoch"`
	Status        string    `json:"status"`
	ImagePath     string    `json:"image_path,omitempty"`
	ErrorText     string    `json:"error_text,omitempty"`
	TakenAt       time.Time `json:"taken_at"`
}

// Successful reports whether the verification booted the point.
func (s Screenshot) Successful() bool {
	return s.Status == ScreenshotSuccess
}
