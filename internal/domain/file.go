package domain

import "time"

// TemporaryFileType marks files no domain object has claimed yet.
const TemporaryFileType = "TEMPORARY_FILE_TYPE"

// FileIDLength is the fixed length of file ids assigned by the upload layer.
const FileIDLength = 32

// File is the metadata record of an uploaded file. UploaderID is nil for system uploads.
type File struct {
	ID         string
	Filename   string
	MimeType   string
	Size       int64
	DomainType string
	UploaderID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FileInput describes a file already stored by the upload layer.
type FileInput struct {
	ID         string
	Filename   string
	MimeType   string
	Size       int64
	DomainType string
}

// SetDomainTypeInput reassigns files to a domain type.
type SetDomainTypeInput struct {
	FileIDs    []string
	DomainType string
}
