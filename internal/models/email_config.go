package models

import "time"

// EmailConfigID is the key of the single email configuration record
const EmailConfigID = "default"

type EmailConfig struct {
	ConfigID     string
	Sender       string
	Subscribers  []string
	WeeklyReport bool
	UpdatedTime  time.Time
}

// IsSubscribed reports whether address receives notifications
func (c *EmailConfig) IsSubscribed(address string) bool {
	for _, s := range c.Subscribers {
		if s == address {
			return true
		}
	}
	return false
}
