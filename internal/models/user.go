package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Requester is the identity behind a request. A nil *Requester is anonymous.
type Requester struct {
	ID       int64
	Username string
}
