package model

import "time"

// User represents a registered identity from the external music provider.
// Exactly one record exists per provider id; it is created lazily the first
// time a bearer credential for that identity validates.
type User struct {
	ID           int64      `json:"id" gorm:"column:id;primaryKey"`
	ProviderID   string     `json:"providerId" gorm:"column:provider_id"`
	DisplayName  string     `json:"displayName" gorm:"column:display_name"`
	Email        string     `json:"email,omitempty" gorm:"column:email"`
	AccessToken  string     `json:"-" gorm:"column:access_token"`
	RefreshToken string     `json:"-" gorm:"column:refresh_token"`
	TokenExpiry  *time.Time `json:"-" gorm:"column:token_expiry"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName keeps GORM on the table created by db.InitDB.
func (User) TableName() string {
	return "users"
}
