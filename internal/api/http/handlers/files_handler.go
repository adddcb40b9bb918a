package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// FilesHandler exposes file metadata endpoints.
type FilesHandler struct {
	files *service.FileService
}

// NewFilesHandler constructs handler.
func NewFilesHandler(files *service.FileService) *FilesHandler {
	return &FilesHandler{files: files}
}

// AddFiles handles POST /files.
func (h *FilesHandler) AddFiles(c *fiber.Ctx) error {
	var req dto.AddFilesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	files, err := h.files.AddFiles(c.UserContext(), req.ToInputs())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFileResponses(files)})
}

// GetFiles handles GET /files?ids=a,b.
func (h *FilesHandler) GetFiles(c *fiber.Ctx) error {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	files, err := h.files.GetFiles(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFileResponses(files)})
}

// SetDomainType handles PUT /files/domain-type.
func (h *FilesHandler) SetDomainType(c *fiber.Ctx) error {
	var req dto.SetDomainTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	files, err := h.files.SetDomainType(c.UserContext(), domain.SetDomainTypeInput{FileIDs: req.IDs, DomainType: req.DomainType})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFileResponses(files)})
}

// DeleteFiles handles POST /files/delete.
func (h *FilesHandler) DeleteFiles(c *fiber.Ctx) error {
	var req dto.FileIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	count, err := h.files.DeleteFiles(c.UserContext(), req.IDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": count}})
}
