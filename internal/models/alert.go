package models

import "time"

// Alert severities
const (
	SeverityCritical      = "critical"
	SeverityError         = "error"
	SeverityWarning       = "warning"
	SeverityInformational = "informational"
)

// Alert states
const (
	AlertStateNew      = "new"
	AlertStateResolved = "resolved"
)

type Alert struct {
	AlertID              int64
	AlertUUID            string
	Severity             string
	State                string
	Module               string
	Resource             string
	Description          string
	Health               string
	HealthRecommendation string
	Acknowledged         bool
	Resolved             bool
	Comment              string
	CreatedTime          time.Time
	UpdatedTime          time.Time
}

// Notifiable reports whether subscribers should be mailed about the alert
func (a *Alert) Notifiable() bool {
	return a.Severity == SeverityCritical || a.Severity == SeverityError
}

// Closed reports whether the alert needs no further attention
func (a *Alert) Closed() bool {
	return a.Acknowledged && a.Resolved
}
