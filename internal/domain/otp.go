package domain

import "time"

type OtpChallenge struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CodeHash    string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
}
