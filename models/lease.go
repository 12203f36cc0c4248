package models

import "time"

// Lease schützt den Abgleich einer Quelle vor überlappenden Läufen.
type Lease struct {
	Name      string    `json:"name" dynamodbav:"name" gorm:"primaryKey"`
	Owner     string    `json:"owner" dynamodbav:"owner"`
	ExpiresAt time.Time `json:"expiresAt" dynamodbav:"expiresAt,unixtime" gorm:"column:expires_at;index"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Lease) TableName() string {
	return "sync_leases"
}

// LeaseName liefert den Lease-Namen für eine Quelle.
func LeaseName(s Source) string {
	return "sync:" + string(s)
}
