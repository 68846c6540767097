package models

import "time"

// Module IDs used for per-module access levels
const (
	ModuleOperacao    = "operacao"
	ModuleLavagem     = "lavagem"
	ModuleCompostagem = "compostagem"
	ModuleContatos    = "contatos"
)

// Access levels (ordered). A user needs at least the required level for an action.
const (
	AccessNone     = 0
	AccessBasic    = 1
	AccessAdvanced = 2
	AccessFull     = 3
)

type User struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // Never expose in JSON
	Role         string         `json:"role"`          // admin or employee
	AccessLevels map[string]int `json:"access_levels"` // module id -> level (0-3)
	IsActive     bool           `json:"is_active"`     // true = active, false = paused/suspended
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	Role         string         `json:"role"`
	AccessLevels map[string]int `json:"access_levels"`
}

// UpdateAccessRequest represents the request body for changing a user's module access
type UpdateAccessRequest struct {
	AccessLevels map[string]int `json:"access_levels"`
}
