package session

import "fmt"

// Role is the closed set of account roles the analyzer knows about.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Session is the authenticated identity bound to this client instance.
// The token is an opaque bearer credential; the client never inspects it.
type Session struct {
	UserID   int
	Username string
	Role     Role
	Token    string
}
