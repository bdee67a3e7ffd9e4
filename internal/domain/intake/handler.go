package intake

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc     *Service
	maxSize int64
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, maxSize: svc.opts.MaxArtifactSize}
}

// RegisterRoutes mounts the public submission endpoint.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/submissions", h.CreateSubmission)
}

type createResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// CreateSubmission accepts multipart form data with a "file" part.
func (h *Handler) CreateSubmission(c echo.Context) error {
	form := Form{
		PatientName:     c.FormValue("patientName"),
		Gender:          c.FormValue("gender"),
		Age:             c.FormValue("age"),
		PhoneNumber:     c.FormValue("phoneNumber"),
		ReferringDoctor: c.FormValue("referringDoctor"),
		PrimaryQuestion: c.FormValue("primaryQuestion"),
	}

	artifact, err := h.readArtifact(c)
	if err != nil {
		return err
	}

	id, err := h.svc.Submit(c.Request().Context(), form, artifact)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, createResponse{ID: id.String(), Status: StatusPending})
}

// readArtifact returns nil when no file part was sent so that the service
// reports ErrMissingArtifact.
func (h *Handler) readArtifact(c echo.Context) (*Artifact, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	if h.maxSize > 0 && fh.Size > h.maxSize {
		return nil, toHTTPError(ErrArtifactTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file part")
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxSize > 0 {
		r = io.LimitReader(f, h.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file part")
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == echo.MIMEOctetStream {
		contentType = http.DetectContentType(data)
	}
	return &Artifact{FileName: fh.Filename, ContentType: contentType, Data: data}, nil
}

type fieldErrorBody struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

func toHTTPError(err error) error {
	var fe *FieldError
	switch {
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fieldErrorBody{
			Message: fmt.Sprintf("%s %s", fe.Field, fe.Reason),
			Field:   fe.Field,
		})
	case errors.Is(err, ErrMissingArtifact):
		return echo.NewHTTPError(http.StatusBadRequest, ErrMissingArtifact.Error())
	case errors.Is(err, ErrArtifactTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrArtifactTooLarge.Error())
	case errors.Is(err, ErrUploadFailed):
		return echo.NewHTTPError(http.StatusBadGateway, ErrUploadFailed.Error())
	case errors.Is(err, ErrPersistFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, ErrPersistFailed.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, ErrUnexpected.Error())
	}
}
