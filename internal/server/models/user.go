package models

import (
	"strings"
	"time"
)

// Account authorities recorded on a profile.
const (
	ProviderFirebase = "firebase"
	ProviderLocal    = "local"
)

// EmailDomain is appended to usernames to form the synthetic handle the
// identity provider requires. It is not a contact address.
const EmailDomain = "@example.com"

// DerivedEmail returns the identity-provider handle for username.
func DerivedEmail(username string) string {
	return username + EmailDomain
}

// UsernameFromEmail returns the local part of email.
func UsernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// UserProfile is one account as persisted in the record store (GORM) and the
// document store. When both an identity-provider uid and a store key exist the
// provider uid is used as ID.
type UserProfile struct {
	ID                 string    `gorm:"primaryKey;type:text" json:"id"`
	Username           string    `gorm:"type:text;not null;index" json:"username"`
	Email              string    `gorm:"type:text" json:"email,omitempty"`
	Provider           string    `gorm:"type:text;not null" json:"provider"`
	PasswordHash       string    `gorm:"column:password_hash;type:text" json:"-"`
	ProfileDescription string    `gorm:"type:text" json:"profileDescription,omitempty"`
	Settings           JSONMap   `gorm:"type:jsonb" json:"settings,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "users"
}

// ProfileView is the normalized shape returned by every profile read,
// whichever backend answered.
type ProfileView struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Provider           string     `json:"provider"`
	CreatedAt          *time.Time `json:"createdAt"`
	ProfileDescription string     `json:"profileDescription,omitempty"`
	Settings           JSONMap    `json:"settings,omitempty"`
}

// View converts a stored profile into its normalized view.
func (p *UserProfile) View() ProfileView {
	v := ProfileView{
		ID:                 p.ID,
		Username:           p.Username,
		Provider:           p.Provider,
		ProfileDescription: p.ProfileDescription,
		Settings:           p.Settings,
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt
		v.CreatedAt = &t
	}
	return v
}

// ProfilePatch lists the merge-updatable profile fields. Nil means untouched.
type ProfilePatch struct {
	Username           *string
	ProfileDescription *string
	Settings           JSONMap
	PasswordHash       *string
	UpdatedAt          time.Time
}
