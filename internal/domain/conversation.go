package domain

import (
	"time"

	"github.com/samber/lo"
)

// Conversation agrupa participantes y roles. LastMessageID es una referencia
// débil: solo id y fecha, nunca una copia del mensaje.
type Conversation struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title,omitempty"`
	CreatorID          string     `json:"creatorId"`
	Participants       []string   `json:"participants"`
	Admins             []string   `json:"admins"`
	IsGroup            bool       `json:"isGroup"`
	IsPrivate          bool       `json:"isPrivate"`
	AdminOnlyMessaging bool       `json:"adminOnlyMessaging"`
	LastMessageID      *string    `json:"lastMessageId,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (c Conversation) IsParticipant(userID string) bool {
	return userID != "" && lo.Contains(c.Participants, userID)
}

// IsAdmin es verdadero para el creador o cualquier id presente en Admins.
func (c Conversation) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == c.CreatorID || lo.Contains(c.Admins, userID)
}

// DeriveIsGroup aplica la regla: más de dos participantes o un título.
func DeriveIsGroup(participants []string, title string) bool {
	return len(participants) > 2 || title != ""
}
