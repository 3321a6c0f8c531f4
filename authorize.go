package authcore

import (
	"context"
	"fmt"
)

// Action names a protected operation as "resource:verb".
type Action string

// Site actions
const (
	ActionExperienceRead   Action = "experience:read"
	ActionExperienceCreate Action = "experience:create"
	ActionExperienceUpdate Action = "experience:update"
	ActionExperienceDelete Action = "experience:delete"

	ActionDiscussionRead   Action = "discussion:read"
	ActionDiscussionCreate Action = "discussion:create"
	ActionDiscussionDelete Action = "discussion:delete"

	ActionCompanyRead   Action = "company:read"
	ActionCompanyManage Action = "company:manage"

	ActionJobsRead   Action = "jobs:read"
	ActionJobsManage Action = "jobs:manage"

	ActionResourceRead   Action = "resource:read"
	ActionResourceManage Action = "resource:manage"

	ActionUsersManage Action = "users:manage"
)

// Policy decides who may perform an action.
//
// Admins may do anything. Any signed-in user may perform a Public action.
// Otherwise a user may act only on resources they own, and owned actions listed
// in RequireVerified additionally need a verified account.
type Policy struct {
	Public          map[Action]bool
	RequireVerified map[Action]bool
}

// DefaultPolicy makes every read public and gates content creation on verification.
func DefaultPolicy() Policy {
	return Policy{
		Public: map[Action]bool{
			ActionExperienceRead: true,
			ActionDiscussionRead: true,
			ActionCompanyRead:    true,
			ActionJobsRead:       true,
			ActionResourceRead:   true,
		},
		RequireVerified: map[Action]bool{
			ActionExperienceCreate: true,
			ActionExperienceUpdate: true,
			ActionDiscussionCreate: true,
		},
	}
}

// Authorize returns nil when user may perform action on a resource owned by
// ownerID. Pass an empty ownerID for resources without an owner.
func (p Policy) Authorize(user *User, action Action, ownerID string) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if user.Role == RoleAdmin {
		return nil
	}
	if p.Public[action] {
		return nil
	}
	if ownerID != "" && ownerID == user.ID {
		if p.RequireVerified[action] {
			return RequireVerified(user)
		}
		return nil
	}
	return ErrForbidden
}

// Authorize checks action against the configured policy.
func (a *Auth) Authorize(user *User, action Action, ownerID string) error {
	return a.Policy.Authorize(user, action, ownerID)
}

// SetRole changes the role of targetID. Only actors allowed users:manage may do it.
func (a *Auth) SetRole(ctx context.Context, actor *User, targetID, role string) (*User, error) {
	if err := a.Policy.Authorize(actor, ActionUsersManage, ""); err != nil {
		return nil, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := a.Users.UpdateFields(ctx, targetID, UserUpdate{Role: &r})
	if err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	a.Logger.Info(ctx, "role changed", "actor_id", actor.ID, "user_id", user.ID, "role", string(r))
	return user, nil
}
