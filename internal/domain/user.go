package domain

import "time"

type User struct {
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phoneNumber"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"displayName"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	StatusMessage string    `json:"statusMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserSummary es la vista pública de un usuario en búsquedas.
type UserSummary struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	PhoneNumber   string `json:"phoneNumber"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		PhoneNumber:   u.PhoneNumber,
		StatusMessage: u.StatusMessage,
	}
}
