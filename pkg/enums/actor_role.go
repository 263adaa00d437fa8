package enums

import "fmt"

// ActorRole identifies which surface a caller authenticated for.
type ActorRole string

const (
	ActorRolePartner ActorRole = "partner"
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleSystem  ActorRole = "system"
)

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the role can be carried by an access token.
func (r ActorRole) IsValid() bool {
	return r == ActorRolePartner || r == ActorRoleAdmin
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	role := ActorRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", value)
	}
	return role, nil
}
