package models

import "fmt"

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleUser       Role = "USER"
)

func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return Role(value), nil
	default:
		return "", fmt.Errorf("unknown role %q (must be one of SUPER_ADMIN, ADMIN, USER)", value)
	}
}

type User struct {
	ID                  int    `json:"id,omitempty"`
	Email               string `json:"email" validate:"required,email"`
	Role                Role   `json:"role" validate:"required,oneof=SUPER_ADMIN ADMIN USER"`
	PasswordIsTemporary bool   `json:"passwordIsTemporary"`
}

func (u User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

func (u User) Validate() error {
	return validateStruct(u)
}

// AuthState is what the API reports about the current cookie session.
type AuthState struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

type Credentials struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

func (c Credentials) Validate() error {
	return validateStruct(c)
}

// String keeps the password out of logs.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials<Email: %s, Password: redacted, RememberMe: %v>", c.Email, c.RememberMe)
}
