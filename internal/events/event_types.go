package events

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Entity types.
const (
	EntityUser  = "USER"
	EntityToken = "TOKEN"
	EntityFile  = "FILE"
	EntityEmail = "EMAIL"
)

// Event types.
const (
	TypeSignedUp  = "SIGNED_UP"
	TypeLoggedIn  = "LOGGED_IN"
	TypeLoggedOut = "LOGGED_OUT"
	TypeUpdated   = "UPDATED"
	TypeCreated   = "CREATED"
	TypeConsumed  = "CONSUMED"
	TypeUploaded  = "UPLOADED"
	TypeDeleted   = "DELETED"
	TypeSent      = "SENT"
)

// DomainEvent records a completed state transition. CreatedAt is the entity's own timestamp
// so replaying the same mutation yields the same event. Payload never repeats the top-level
// identifiers or immutable timestamps.
type DomainEvent struct {
	EntityType   string    `json:"entityType"`
	Type         string    `json:"type"`
	EntityID     string    `json:"entityId"`
	AuthorUserID *string   `json:"authorUserId"`
	TargetUserID *string   `json:"targetUserId"`
	CreatedAt    time.Time `json:"createdAt"`
	Payload      any       `json:"payload"`
}

// Name returns ENTITY/TYPE, used for in-process subscriptions.
func (e DomainEvent) Name() string {
	return Name(e.EntityType, e.Type)
}

// Name joins an entity type and an event type.
func Name(entityType, eventType string) string {
	return entityType + "/" + eventType
}

func ptr(s string) *string { return &s }

// TokenCreatedPayload payload.
type TokenCreatedPayload struct {
	Type                  string    `json:"type"`
	UserID                string    `json:"userId"`
	ExpiredAt             time.Time `json:"expiredAt"`
	DiscardPreviousTokens bool      `json:"discardPreviousTokens"`
}

// TokenCreated is emitted after a token row is inserted.
func TokenCreated(token *domain.Token, discardPreviousTokens bool) DomainEvent {
	return DomainEvent{
		EntityType:   EntityToken,
		Type:         TypeCreated,
		EntityID:     token.ID,
		TargetUserID: ptr(token.UserID),
		CreatedAt:    token.CreatedAt,
		Payload: TokenCreatedPayload{
			Type:                  token.Type,
			UserID:                token.UserID,
			ExpiredAt:             token.ExpiredAt,
			DiscardPreviousTokens: discardPreviousTokens,
		},
	}
}

// TokenConsumed is emitted after a token has been redeemed at consumedAt.
func TokenConsumed(token *domain.Token, consumedAt time.Time) DomainEvent {
	return DomainEvent{
		EntityType:   EntityToken,
		Type:         TypeConsumed,
		EntityID:     token.ID,
		AuthorUserID: ptr(token.UserID),
		CreatedAt:    consumedAt,
	}
}

// UserSignedUpPayload payload.
type UserSignedUpPayload struct {
	Email string `json:"email"`
}

// UserUpdatedPayload lists changed fields. Values are never published.
type UserUpdatedPayload struct {
	UpdatedFields []string `json:"updatedFields"`
}

// UserSignedUp is emitted after an account is created.
func UserSignedUp(user *domain.User) DomainEvent {
	return DomainEvent{
		EntityType:   EntityUser,
		Type:         TypeSignedUp,
		EntityID:     user.ID,
		AuthorUserID: ptr(user.ID),
		CreatedAt:    user.CreatedAt,
		Payload:      UserSignedUpPayload{Email: user.Email},
	}
}

// UserLoggedIn is emitted after a successful login at loggedAt.
func UserLoggedIn(user *domain.User, loggedAt time.Time) DomainEvent {
	return DomainEvent{
		EntityType:   EntityUser,
		Type:         TypeLoggedIn,
		EntityID:     user.ID,
		AuthorUserID: ptr(user.ID),
		CreatedAt:    loggedAt,
	}
}

// UserLoggedOut is emitted when userID logs out at loggedAt.
func UserLoggedOut(userID string, loggedAt time.Time) DomainEvent {
	return DomainEvent{
		EntityType:   EntityUser,
		Type:         TypeLoggedOut,
		EntityID:     userID,
		AuthorUserID: ptr(userID),
		CreatedAt:    loggedAt,
	}
}

// UserUpdated is emitted after an account change.
func UserUpdated(user *domain.User, fields ...string) DomainEvent {
	return DomainEvent{
		EntityType:   EntityUser,
		Type:         TypeUpdated,
		EntityID:     user.ID,
		AuthorUserID: ptr(user.ID),
		CreatedAt:    user.UpdatedAt,
		Payload:      UserUpdatedPayload{UpdatedFields: fields},
	}
}

// FileUploadedPayload payload.
type FileUploadedPayload struct {
	Filename   string  `json:"filename"`
	MimeType   string  `json:"mimeType"`
	Size       int64   `json:"size"`
	DomainType string  `json:"domainType"`
	UploaderID *string `json:"uploaderId"`
}

// FileUpdatedPayload payload.
type FileUpdatedPayload struct {
	DomainType string `json:"domainType"`
}

// FileUploaded is emitted for every stored file record.
func FileUploaded(file *domain.File) DomainEvent {
	return DomainEvent{
		EntityType:   EntityFile,
		Type:         TypeUploaded,
		EntityID:     file.ID,
		AuthorUserID: file.UploaderID,
		CreatedAt:    file.CreatedAt,
		Payload: FileUploadedPayload{
			Filename:   file.Filename,
			MimeType:   file.MimeType,
			Size:       file.Size,
			DomainType: file.DomainType,
			UploaderID: file.UploaderID,
		},
	}
}

// FileUpdated is emitted after a file's domain type changes.
func FileUpdated(file *domain.File) DomainEvent {
	return DomainEvent{
		EntityType: EntityFile,
		Type:       TypeUpdated,
		EntityID:   file.ID,
		CreatedAt:  file.UpdatedAt,
		Payload:    FileUpdatedPayload{DomainType: file.DomainType},
	}
}

// FileDeleted is emitted for every deleted file id.
func FileDeleted(fileID string, deletedAt time.Time) DomainEvent {
	return DomainEvent{
		EntityType: EntityFile,
		Type:       TypeDeleted,
		EntityID:   fileID,
		CreatedAt:  deletedAt,
	}
}

// EmailSentPayload omits the body and the message id.
type EmailSentPayload struct {
	From    string                `json:"from,omitempty"`
	To      []domain.EmailAddress `json:"to"`
	Type    string                `json:"type"`
	Subject string                `json:"subject"`
	Headers map[string]string     `json:"headers"`
}

// EmailSent is emitted once the mailer accepted a message.
func EmailSent(msg *domain.EmailMessage, authorUserID, targetUserID *string, sentAt time.Time) DomainEvent {
	return DomainEvent{
		EntityType:   EntityEmail,
		Type:         TypeSent,
		EntityID:     msg.ID,
		AuthorUserID: authorUserID,
		TargetUserID: targetUserID,
		CreatedAt:    sentAt,
		Payload: EmailSentPayload{
			From:    msg.From,
			To:      msg.To,
			Type:    msg.Type,
			Subject: msg.Subject,
			Headers: msg.Headers,
		},
	}
}
