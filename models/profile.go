package models

import "time"

// UserProfile holds contact and delivery details for a user (one-to-one)
type UserProfile struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Phone      *string    `gorm:"uniqueIndex;size:17" json:"phone"` // nullable, unique when set
	MiddleName string     `gorm:"size:30" json:"middle_name"`
	Address    string     `gorm:"type:text" json:"address"`
	City       string     `gorm:"size:100" json:"city"`
	PostalCode string     `gorm:"size:10" json:"postal_code"`
	BirthDate  *time.Time `gorm:"type:date" json:"birth_date"`
	IsVerified bool       `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the UserProfile model
func (UserProfile) TableName() string {
	return "user_profiles"
}

// PhoneValue returns the phone number or an empty string
func (p UserProfile) PhoneValue() string {
	if p.Phone == nil {
		return ""
	}
	return *p.Phone
}
