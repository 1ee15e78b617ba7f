package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/policy"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

const requesterKey = "requester"

// ResolveRequester turns the authenticated account (if any) into the
// policy.Requester every handler passes to the services. A token for an
// account that no longer exists is rejected.
func (s *Server) ResolveRequester() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := policy.Anonymous
		if claims, ok := middleware.ClaimsFromCtx(c); ok {
			resolved, err := s.accountService.Resolve(c.UserContext(), claims.AccountID)
			if err != nil {
				return respondError(c, err)
			}
			r = resolved
		}
		observability.Annotate(c.UserContext(), observability.RequesterAttributes(r.AccountID, r.ProfileID, r.IsAdmin)...)
		c.Locals(requesterKey, r)
		return c.Next()
	}
}

func requesterFrom(c *fiber.Ctx) policy.Requester {
	if r, ok := c.Locals(requesterKey).(policy.Requester); ok {
		return r
	}
	return policy.Anonymous
}

// respondError writes err with the status its code maps to. Unexpected
// errors are logged before the generic 500 body goes out.
func respondError(c *fiber.Ctx, err error) error {
	if models.HTTPStatus(err) == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithAppError(c, err)
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid request body"))
}

// parsePage reads `page` and `page_size`, defaulting the size from config.
func (s *Server) parsePage(c *fiber.Ctx) models.PageRequest {
	size := s.config.PageSize
	if size <= 0 {
		size = models.DefaultPageSize
	}
	return models.NewPageRequest(c.QueryInt("page", 1), c.QueryInt("page_size", size))
}

// parseID extracts a route parameter as a positive uint.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid " + param)
	}
	return uint(id), nil
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.config.ImageMaxUploadSizeMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}

// readUploads loads the files sent under field into memory.
func (s *Server) readUploads(c *fiber.Ctx, field string) ([]service.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Expected a multipart form upload.")
	}
	headers := form.File[field]
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := s.readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func (s *Server) readUpload(fh *multipart.FileHeader) (service.Upload, error) {
	limit := s.maxUploadBytes()
	if fh.Size > limit {
		return service.Upload{}, models.NewValidationError(
			fmt.Sprintf("%s exceeds the maximum upload size of %d MB.", fh.Filename, limit/(1024*1024)))
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return service.Upload{}, models.NewInternalError(err)
	}
	return service.Upload{Filename: fh.Filename, Content: content}, nil
}

// toggleResponse renders a toggle outcome. A limit_exceeded outcome is a
// normal 200 payload.
func toggleResponse(c *fiber.Ctx, res models.ToggleResult, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
