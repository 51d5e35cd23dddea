package orders

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Requester is the identity resolved by the transport layer for one request.
// The zero value is an anonymous caller.
type Requester struct {
	UserID string
	Role   Role
	Name   string
	Email  string
}

func (r Requester) Authenticated() bool { return r.UserID != "" }

func (r Requester) HasRole(role Role) bool { return r.Authenticated() && r.Role == role }

// CanSee reports whether r may read an order owned by ownerID.
func (r Requester) CanSee(ownerID string) bool {
	return r.HasRole(RoleAdmin) || (r.Authenticated() && r.UserID == ownerID)
}

func requireAdmin(r Requester) error {
	if !r.HasRole(RoleAdmin) {
		return ErrUnauthorized
	}
	return nil
}
