package dto

import (
	"time"

	"github.com/spec-kit/identity-service/internal/domain"
)

// FileRequest describes one stored file.
type FileRequest struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	DomainType string `json:"domainType"`
}

// AddFilesRequest payload for POST /files.
type AddFilesRequest struct {
	Files []FileRequest `json:"files"`
}

// FileIDsRequest payload naming files.
type FileIDsRequest struct {
	IDs []string `json:"ids"`
}

// SetDomainTypeRequest payload for PUT /files/domain-type.
type SetDomainTypeRequest struct {
	IDs        []string `json:"ids"`
	DomainType string   `json:"domainType"`
}

// FileResponse is the public view of a file record.
type FileResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	DomainType string    `json:"domainType"`
	UploaderID *string   `json:"uploaderId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ToInputs converts the request payload.
func (r AddFilesRequest) ToInputs() []domain.FileInput {
	inputs := make([]domain.FileInput, 0, len(r.Files))
	for _, f := range r.Files {
		inputs = append(inputs, domain.FileInput{
			ID:         f.ID,
			Filename:   f.Filename,
			MimeType:   f.MimeType,
			Size:       f.Size,
			DomainType: f.DomainType,
		})
	}
	return inputs
}

// NewFileResponses converts file records.
func NewFileResponses(files []*domain.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, FileResponse{
			ID:         f.ID,
			Filename:   f.Filename,
			MimeType:   f.MimeType,
			Size:       f.Size,
			DomainType: f.DomainType,
			UploaderID: f.UploaderID,
			CreatedAt:  f.CreatedAt,
			UpdatedAt:  f.UpdatedAt,
		})
	}
	return out
}
