package domain

import "fmt"

// Role determines which gated views a principal may open.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	// RoleAny is the guard requirement satisfied by any authenticated principal.
	RoleAny Role = ""
)

// roleRank orders roles so that a broader role satisfies a narrower requirement.
var roleRank = map[Role]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// ParseRole converts the wire form of a role. Unknown values are rejected
// rather than defaulted so that a typo never grants or hides access.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether a principal holding r meets the required role.
func (r Role) Satisfies(required Role) bool {
	if required == RoleAny {
		return true
	}
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= need
}

func (r Role) String() string {
	if r == RoleAny {
		return "any"
	}
	return string(r)
}

// Principal is the identity behind a verified credential. It is only ever
// built from the Auth service's verify response.
type Principal struct {
	Username string `json:"username" validate:"required"`
	Role     Role   `json:"role"     validate:"required,oneof=user admin"`
}
