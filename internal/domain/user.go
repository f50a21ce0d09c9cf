package domain

import "time"

// User es la cuenta local. Los códigos vacíos equivalen a NULL en el store.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Verified         bool      `json:"verified"`
	VerificationCode string    `json:"-"`
	ResetCode        string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}
