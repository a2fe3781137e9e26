package models

import "time"

// User is an identity record at the service boundary. Session issuance and
// password management beyond login live outside this service.
type User struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}
