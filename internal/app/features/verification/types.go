// internal/app/features/verification/types.go
package verification

const codeQuotaNotFound = "quota_not_found"

type promoteGeDerRequest struct {
	UserID string `json:"user_id"`
}

type suspendQuotaRequest struct {
	Reason string `json:"reason"`
}
