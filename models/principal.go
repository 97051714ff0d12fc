package models

type Role string

const (
	RoleUser   Role = "user"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

// Principal is the authenticated caller of a request or socket.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	// SessionID is the jti of the token the principal authenticated with.
	SessionID string `json:"-"`
}

// SenderModel maps a chat participant role onto the message discriminator.
func (p Principal) SenderModel() (SenderModel, bool) {
	switch p.Role {
	case RoleUser:
		return SenderUser, true
	case RoleDoctor:
		return SenderDoctor, true
	}
	return "", false
}
