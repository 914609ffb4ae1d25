// internal/app/policy/grouppolicy.go

// Package grouppolicy holds the eligibility guards for group operations.
// Guards are pure predicates over the session snapshot; they return a
// human-readable reason so handlers can surface it without re-deriving
// which check failed.
package grouppolicy

import (
	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
)

// IsVerifiedMember reports whether the user holds a vouched-for role
// (geder or supporter). Unverified users see nothing group-related.
func IsVerifiedMember(u *auth.SessionUser) bool {
	return u != nil && (u.Role == models.RoleGeDer || u.Role == models.RoleSupporter)
}

// CanListGroups reports whether the user may browse groups.
func CanListGroups(u *auth.SessionUser) (bool, string) {
	if !IsVerifiedMember(u) {
		return false, "only verified members can browse groups"
	}
	return true, ""
}

// CanCreateGroup reports whether the user may create a group: geder,
// onboarded, not diaspora.
func CanCreateGroup(u *auth.SessionUser) (bool, string) {
	if u == nil || u.Role != models.RoleGeDer {
		return false, "only a geder can create a group"
	}
	if !u.OnboardingCompleted {
		return false, "onboarding must be completed first"
	}
	if u.IsDiaspora {
		return false, "diaspora members cannot create groups"
	}
	return true, ""
}

// CanJoinGroup reports whether the user may join a group: verified
// member, onboarded, not diaspora.
func CanJoinGroup(u *auth.SessionUser) (bool, string) {
	if !IsVerifiedMember(u) {
		return false, "only verified members can join groups"
	}
	if !u.OnboardingCompleted {
		return false, "onboarding must be completed first"
	}
	if u.IsDiaspora {
		return false, "diaspora members cannot join groups"
	}
	return true, ""
}

// OwnPrecinct reports whether the group's precinct matches the user's.
// Group creation is restricted to the creator's own precinct, but only
// when the creator has a precinct assignment; without one any precinct
// is allowed.
func OwnPrecinct(u *auth.SessionUser, groupPrecinctHex string) (bool, string) {
	if u == nil {
		return false, "groups are restricted to your own precinct"
	}
	if u.PrecinctID == "" {
		return true, ""
	}
	if u.PrecinctID != groupPrecinctHex {
		return false, "groups are restricted to your own precinct"
	}
	return true, ""
}
