// internal/models/profile.go
package models

// Profile mirrors a user of the hosted auth provider. AuthID is the subject
// of the provider's tokens.
type Profile struct {
	BaseModel
	AuthID        string   `json:"auth_id" gorm:"size:128;not null;uniqueIndex"`
	Email         string   `json:"email" gorm:"size:255;not null;index"`
	FullName      string   `json:"full_name" gorm:"size:255"`
	Phone         string   `json:"phone,omitempty" gorm:"size:32"`
	UserType      UserType `json:"user_type" gorm:"type:varchar(20);not null;default:'customer'"`
	EmailVerified bool     `json:"email_verified" gorm:"default:false"`
	PhoneVerified bool     `json:"phone_verified" gorm:"default:false"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.UserType == UserTypeAdmin
}
