package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/authctx"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/platform/clock"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

const maxFilesPerCall = 10

// FileService keeps metadata of files stored by the upload layer.
type FileService struct {
	files  repository.FileRepository
	events events.Dispatcher
	clock  clock.Clock
	logger *zap.Logger
}

// FileDependencies encapsulates requirements for the file service.
type FileDependencies struct {
	FileRepo   repository.FileRepository
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewFileService builds the service.
func NewFileService(deps FileDependencies) *FileService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &FileService{files: deps.FileRepo, events: deps.Dispatcher, clock: deps.Clock, logger: deps.Logger}
}

// AddFiles records uploaded files. Files without a domain type stay temporary until a system
// claims them.
func (s *FileService) AddFiles(ctx context.Context, inputs []domain.FileInput) ([]*domain.File, error) {
	ac := authctx.FromContext(ctx)
	if err := ac.AssertAuthenticated(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ID)
		checkLength(f, "filename", in.Filename, 1, 255)
		checkLength(f, "mimeType", in.MimeType, 1, 255)
		if in.Size < 0 {
			f.add("size", "must not be negative")
		}
	}
	checkFileIDs(f, ids)
	if err := f.err("invalid files"); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	files := make([]*domain.File, 0, len(inputs))
	for _, in := range inputs {
		domainType := in.DomainType
		if strings.TrimSpace(domainType) == "" {
			domainType = domain.TemporaryFileType
		}
		files = append(files, &domain.File{
			ID:         in.ID,
			Filename:   in.Filename,
			MimeType:   in.MimeType,
			Size:       in.Size,
			DomainType: domainType,
			UploaderID: ac.UserID(),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := s.files.CreateFiles(ctx, files); err != nil {
		if errors.Is(err, repository.ErrFileExists) {
			return nil, apperrors.NewConflict("file already exists", map[string]any{"ids": ids})
		}
		return nil, apperrors.NewInternalError(err)
	}
	for _, file := range files {
		s.events.Dispatch(ctx, events.FileUploaded(file))
	}
	return files, nil
}

// GetFiles returns the live files among ids, in no particular order.
func (s *FileService) GetFiles(ctx context.Context, ids []string) ([]*domain.File, error) {
	if err := authctx.FromContext(ctx).AssertAuthenticated(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkFileIDs(f, ids)
	if err := f.err("invalid file ids"); err != nil {
		return nil, err
	}
	files, err := s.files.GetFiles(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return files, nil
}

// SetDomainType assigns files to a domain object type. Only systems may claim files.
func (s *FileService) SetDomainType(ctx context.Context, in domain.SetDomainTypeInput) ([]*domain.File, error) {
	if err := authctx.FromContext(ctx).AssertIsSystem(); err != nil {
		return nil, err
	}
	f := fieldErrors{}
	checkFileIDs(f, in.FileIDs)
	checkLength(f, "domainType", in.DomainType, 1, 255)
	if in.DomainType == domain.TemporaryFileType {
		f.add("domainType", "must not be temporary")
	}
	if err := f.err("invalid domain type update"); err != nil {
		return nil, err
	}

	files, err := s.files.UpdateDomainType(ctx, in.FileIDs, in.DomainType, s.clock.Now())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for _, file := range files {
		s.events.Dispatch(ctx, events.FileUpdated(file))
	}
	return files, nil
}

// DeleteFiles soft deletes files and reports how many were live.
func (s *FileService) DeleteFiles(ctx context.Context, ids []string) (int64, error) {
	if err := authctx.FromContext(ctx).AssertIsSystem(); err != nil {
		return 0, err
	}
	f := fieldErrors{}
	checkFileIDs(f, ids)
	if err := f.err("invalid file ids"); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	count, err := s.files.DeleteFiles(ctx, ids, now)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	for _, id := range ids {
		s.events.Dispatch(ctx, events.FileDeleted(id, now))
	}
	return count, nil
}

func checkFileIDs(f fieldErrors, ids []string) {
	switch n := len(ids); {
	case n == 0:
		f.add("ids", "required")
		return
	case n > maxFilesPerCall:
		f.add("ids", "too many files")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if len(id) != domain.FileIDLength {
			f.add("ids", "invalid file id")
		}
		if _, dup := seen[id]; dup {
			f.add("ids", "duplicate file id")
		}
		seen[id] = struct{}{}
	}
}
