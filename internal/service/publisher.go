package service

import "chat-api/internal/domain"

// Publisher difunde un evento a todas las sesiones suscritas a una sala.
// Es fire-and-forget: no hay confirmación ni reintento.
type Publisher interface {
	Publish(room, event string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) {}

func publishToUsers(p Publisher, userIDs []string, event string, payload any) {
	for _, id := range userIDs {
		p.Publish(domain.UserRoom(id), event, payload)
	}
}
