package dto

import "github.com/spec-kit/identity-service/internal/domain"

// SendEmailRequest payload for POST /emails.
type SendEmailRequest struct {
	From         string                `json:"from"`
	To           []domain.EmailAddress `json:"to"`
	TargetUserID *string               `json:"targetUserId"`
	Type         string                `json:"type"`
	Subject      string                `json:"subject"`
	Text         string                `json:"text"`
	HTML         string                `json:"html"`
}

// EmailResponse acknowledges a sent message.
type EmailResponse struct {
	ID      string            `json:"id"`
	Headers map[string]string `json:"headers"`
}

// ToInput converts the request payload.
func (r SendEmailRequest) ToInput() domain.EmailMessageInput {
	return domain.EmailMessageInput{
		From:         r.From,
		To:           r.To,
		TargetUserID: r.TargetUserID,
		Type:         r.Type,
		Subject:      r.Subject,
		Text:         r.Text,
		HTML:         r.HTML,
	}
}
