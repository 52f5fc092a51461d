package models

import (
	"fmt"
	"time"
)

type SocialPlatform string

const PlatformFacebook SocialPlatform = "facebook"

type SocialAccount struct {
	ID              int            `json:"id,omitempty"`
	Platform        SocialPlatform `json:"platform" validate:"required,oneof=facebook"`
	AppClientID     string         `json:"appClientId" validate:"required"`
	AppClientSecret string         `json:"appClientSecret" validate:"required"`
	AccessToken     string         `json:"accessToken,omitempty"`
	TokenExpiresAt  *time.Time     `json:"tokenExpiresAt,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
}

func (s SocialAccount) Validate() error {
	return validateStruct(s)
}

// TokenExpired is false when the platform did not report an expiry.
func (s SocialAccount) TokenExpired() bool {
	if s.TokenExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*s.TokenExpiresAt)
}

// String implements the Stringer interface so that secrets never end up in logs
func (s SocialAccount) String() string {
	return fmt.Sprintf(
		"SocialAccount<ID: %d, Platform: %s, AppClientID: %s, AppClientSecret: redacted, AccessToken: redacted, TokenExpiresAt: %v>",
		s.ID,
		s.Platform,
		s.AppClientID,
		s.TokenExpiresAt,
	)
}
