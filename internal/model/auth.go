package model

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID   int64
	Username string
	Role     Role
}

func (c *Caller) Is(role Role) bool {
	return c != nil && c.Role == role
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}
