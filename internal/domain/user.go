package domain

import (
	"strings"
	"time"

	"github.com/diagnosis/service-sphere/internal/utils"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
)

const (
	MinPasswordLength = 6
	// bcrypt only reads the first 72 bytes.
	MaxPasswordBytes = 72
)

func IsValidRole(role string) bool {
	return role == RoleCustomer || role == RoleProvider
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserInfo is the public part of a user returned after login.
type UserInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type ProviderInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Actor is the authenticated caller as carried by the bearer token.
type Actor struct {
	ID    int64
	Name  string
	Email string
	Role  string
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	User      *UserInfo `json:"user"`
}

// Normalize trims surrounding whitespace. Email case is preserved.
func (r *RegisterRequest) Normalize() {
	r.Name = utils.NormalizeString(r.Name)
	r.Email = utils.NormalizeString(r.Email)
	r.Phone = utils.NormalizeString(r.Phone)
	r.Role = strings.TrimSpace(r.Role)
}

func (r *RegisterRequest) Validate() error {
	v := &ValidationError{}
	if r.Name == "" {
		v.Add("name", "Name is required")
	}
	if !utils.IsValidEmail(r.Email) {
		v.Add("email", "Valid email is required")
	}
	switch {
	case len(r.Password) < MinPasswordLength:
		v.Add("password", "Password must be at least 6 characters")
	case len(r.Password) > MaxPasswordBytes:
		v.Add("password", "Password must be at most 72 bytes")
	}
	if r.Phone == "" {
		v.Add("phone", "Phone is required")
	}
	if !IsValidRole(r.Role) {
		v.Add("role", "Invalid role")
	}
	return v.Err()
}

func (r *LoginRequest) Normalize() {
	r.Email = utils.NormalizeString(r.Email)
}
