// internal/app/policy/endorsepolicy.go

// Package endorsepolicy holds the eligibility guards for endorsement
// operations and the staff-only verification seam.
package endorsepolicy

import (
	"github.com/tkeshelashvili/ateuli/internal/app/system/auth"
	"github.com/tkeshelashvili/ateuli/internal/domain/models"
)

// CanEndorse reports whether the user may endorse applicants: geder,
// onboarded, phone verified. Quota capacity and suspension are checked
// by the ledger, not here.
func CanEndorse(u *auth.SessionUser) (bool, string) {
	if u == nil || u.Role != models.RoleGeDer {
		return false, "only a geder can endorse"
	}
	if !u.IsPhoneVerified {
		return false, "phone verification is required"
	}
	if !u.OnboardingCompleted {
		return false, "onboarding must be completed first"
	}
	return true, ""
}

// CanRevoke reports whether the user may revoke endorsements. The
// guarantor-ownership check belongs to the registry; this only gates the
// role.
func CanRevoke(u *auth.SessionUser) (bool, string) {
	if u == nil || u.Role != models.RoleGeDer {
		return false, "only a geder can revoke an endorsement"
	}
	return true, ""
}

// CanReadQuota reports whether the user may read their own quota.
func CanReadQuota(u *auth.SessionUser) (bool, string) {
	if u == nil || u.Role != models.RoleGeDer {
		return false, "only a geder has an endorsement quota"
	}
	return true, ""
}

// CanOperateVerification reports whether the user may drive the staff
// verification seam (geder promotion, quota suspension).
func CanOperateVerification(u *auth.SessionUser) (bool, string) {
	if u == nil || !u.IsStaff {
		return false, "staff access required"
	}
	return true, ""
}
