package models

import (
	"time"
)

// Access-code permissions. A code grants a subset of these without full
// account authentication.
const (
	PermissionDisarm      = "disarm"
	PermissionArmHome     = "arm_home"
	PermissionArmAway     = "arm_away"
	PermissionViewCameras = "view_cameras"
)

// ValidPermission reports whether p is a grantable permission.
func ValidPermission(p string) bool {
	switch p {
	case PermissionDisarm, PermissionArmHome, PermissionArmAway, PermissionViewCameras:
		return true
	}
	return false
}

// AccessCode represents a time- and count-limited guest credential.
// The code string is the credential; redemption looks it up by value.
type AccessCode struct {
	OwnedModel

	Code  string `json:"code" db:"code"`
	Label string `json:"label" db:"label"`

	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	UseLimit  int       `json:"useLimit" db:"use_limit"`
	UsedCount int       `json:"usedCount" db:"used_count"`

	Permissions StringArray `json:"permissions" db:"permissions"`

	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" db:"last_used_at"`
}

// Redeemable reports whether the code can still be redeemed at the given time.
func (c *AccessCode) Redeemable(now time.Time) bool {
	return now.Before(c.ExpiresAt) && c.UsedCount < c.UseLimit
}

// UsesLeft returns the remaining number of redemptions.
func (c *AccessCode) UsesLeft() int {
	left := c.UseLimit - c.UsedCount
	if left < 0 {
		return 0
	}
	return left
}
