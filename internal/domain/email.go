package domain

// EmailAddress is a recipient or sender, optionally named.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// EmailMessageInput is a message a caller asks to send.
type EmailMessageInput struct {
	From         string
	To           []EmailAddress
	TargetUserID *string
	Type         string
	Subject      string
	Text         string
	HTML         string
}

// EmailMessage is the message handed to the mailer.
type EmailMessage struct {
	ID      string
	From    string
	To      []EmailAddress
	Type    string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Email header names attached to every outgoing message.
const (
	HeaderEmailMessageID   = "email-message-id"
	HeaderTargetUserID     = "target-user-id"
	HeaderEmailMessageType = "email-message-type"
)
