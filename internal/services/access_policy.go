package services

import (
	"fieldops-backend/internal/models"
)

// AccessPolicy gates every mutating action on a per-module access level.
// Evaluated synchronously per action and never cached: a user's access can
// change between actions and must take effect immediately.
type AccessPolicy struct{}

func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// HasAccess reports whether the user holds at least requiredLevel for the
// module. Admins bypass all checks. Suspended users hold no access at all.
func (p *AccessPolicy) HasAccess(user *models.User, moduleID string, requiredLevel int) bool {
	if user == nil || !user.IsActive {
		return false
	}
	if user.Role == "admin" {
		return true
	}
	return user.AccessLevels[moduleID] >= requiredLevel
}
