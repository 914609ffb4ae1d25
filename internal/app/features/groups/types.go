// internal/app/features/groups/types.go
package groups

// Error codes specific to group membership operations.
const (
	codeGroupFull     = "group_full"
	codeAlreadyMember = "already_member"
	codeNotAMember    = "not_a_member"
)

type createGroupRequest struct {
	Name       string `json:"name"`
	PrecinctID string `json:"precinct_id"`
}

type membershipResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	GroupID  string `json:"group_id"`
	JoinedAt string `json:"joined_at"`
}
