package domain

import "strings"

// Role is a closed set of marketplace parties. Role checks switch
// exhaustively over these values instead of dispatching on raw strings.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleFreelancer Role = "FREELANCER"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole normalizes an externally supplied role claim. Unknown values
// come back as invalid input rather than defaulting to a privileged role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleClient:
		return RoleClient, nil
	case RoleFreelancer:
		return RoleFreelancer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidInput
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleFreelancer, RoleAdmin:
		return true
	}
	return false
}
