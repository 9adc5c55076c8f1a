package service

import "errors"

// Kind clasifica un error de dominio para que cada superficie lo traduzca.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindExpired
	KindPrecondition
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindExpired:
		return "expired"
	case KindPrecondition:
		return "precondition"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error es un error de dominio recuperable. Message es seguro para mostrar al cliente.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf devuelve la clase del error, o KindInternal si no es un error de dominio.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

var (
	ErrInvalidPhoneNumber = newError(KindValidation, "Invalid phone number")
	ErrInvalidInput       = newError(KindValidation, "Invalid request payload")
	ErrContentTooLong     = newError(KindValidation, "Message content is too long")
	ErrTooManyFiles       = newError(KindValidation, "Too many attachments")
	ErrInvalidAttachment  = newError(KindValidation, "Attachments must be valid URLs")
	ErrNoAdminChanges     = newError(KindValidation, "Provide admins to add or remove")
	ErrNoFiles            = newError(KindValidation, "Please attach at least one file")
	ErrFileTooLarge       = newError(KindValidation, "File exceeds the maximum allowed size")
	ErrUnsupportedMedia   = newError(KindValidation, "Only image and video uploads are supported")

	ErrUnauthenticated = newError(KindUnauthenticated, "Authentication required")
	ErrInvalidToken    = newError(KindUnauthenticated, "Invalid or expired token")

	ErrForbidden            = newError(KindForbidden, "You are not allowed to perform this action")
	ErrNotAParticipant      = newError(KindForbidden, "You are not part of this conversation")
	ErrTargetNotParticipant = newError(KindForbidden, "User is not a participant of this conversation")
	ErrNotAdmin             = newError(KindForbidden, "Only conversation admins can perform this action")
	ErrNotOwner             = newError(KindForbidden, "Only the sender can edit this message")
	ErrNotCreator           = newError(KindForbidden, "Only the conversation creator can perform this action")
	ErrCreatorImmutable     = newError(KindForbidden, "The conversation creator cannot be removed")
	ErrMessagingRestricted  = newError(KindForbidden, "Only admins can send messages in this conversation")

	ErrConversationNotFound = newError(KindNotFound, "Conversation not found")
	ErrMessageNotFound      = newError(KindNotFound, "Message not found")
	ErrUserNotFound         = newError(KindNotFound, "User not found")
	ErrChallengeNotFound    = newError(KindNotFound, "No verification code requested for this phone number")

	ErrDuplicateIdentity = newError(KindConflict, "Identity already exists")

	ErrRateLimited     = newError(KindRateLimited, "Too many verification requests, try again later")
	ErrTooManyAttempts = newError(KindRateLimited, "Too many failed attempts, request a new code")

	ErrChallengeExpired  = newError(KindExpired, "Verification code expired")
	ErrEditWindowExpired = newError(KindExpired, "Messages can only be edited within 15 minutes")

	ErrInvalidCode              = newError(KindUnauthenticated, "Invalid verification code")
	ErrEmptyMessage             = newError(KindPrecondition, "Message must contain text or attachments")
	ErrInsufficientParticipants = newError(KindPrecondition, "Conversation requires at least two participants")
	ErrNotAGroup                = newError(KindPrecondition, "This action is only available for group conversations")

	ErrCodeDelivery = newError(KindUnavailable, "Verification code could not be delivered, try again later")
)
