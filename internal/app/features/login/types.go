// internal/app/features/login/types.go
package login

type loginRequest struct {
	Phone string `json:"phone"`
}

type loginResponse struct {
	ID           string `json:"id"`
	PhoneNumber  string `json:"phone_number"`
	FullName     string `json:"full_name,omitempty"`
	Role         string `json:"role"`
	MemberStatus string `json:"member_status"`
}
