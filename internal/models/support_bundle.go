package models

import "time"

// Support bundle states
const (
	BundleStatusInProgress = "in_progress"
	BundleStatusReady      = "ready"
	BundleStatusFailed     = "failed"
)

type SupportBundle struct {
	BundleID    string
	Comment     string
	Status      string
	ObjectKey   string
	Size        int64
	CreatedTime time.Time
}
