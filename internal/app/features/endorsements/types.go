// internal/app/features/endorsements/types.go
package endorsements

// Error codes specific to endorsement operations.
const (
	codeAlreadyEndorsed = "already_endorsed"
	codeIneligibleRole  = "ineligible_role"
	codeNotGuarantor    = "not_guarantor"
	codeAlreadyRevoked  = "already_revoked"
	codeQuotaExhausted  = "quota_exhausted"
	codeQuotaSuspended  = "quota_suspended"
	codeQuotaNotFound   = "quota_not_found"
)

type createEndorsementRequest struct {
	SupporterID string `json:"supporter_id"`
}

type revokeEndorsementRequest struct {
	Reason string `json:"reason"`
}

type quotaResponse struct {
	MaxSlots       int  `json:"max_slots"`
	UsedSlots      int  `json:"used_slots"`
	AvailableSlots int  `json:"available_slots"`
	IsSuspended    bool `json:"is_suspended"`
}
