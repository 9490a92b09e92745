package handlers

import (
	"errors"
	"expvar"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/application/verification"
	"github.com/oksasatya/campus-identity/internal/interface/middleware"
	"github.com/oksasatya/campus-identity/pkg/response"
)

// MaxDocumentSize caps uploaded identity documents.
const MaxDocumentSize = 10 << 20

var verificationOutcomes = expvar.NewMap("verification_outcomes")

type VerificationHandler struct {
	Classifier verification.Classifier
	Previews   verification.PreviewStore
	Logger     *logrus.Logger
}

func NewVerificationHandler(classifier verification.Classifier, previews verification.PreviewStore, logger *logrus.Logger) *VerificationHandler {
	return &VerificationHandler{Classifier: classifier, Previews: previews, Logger: logger}
}

// Upload POST /api/verification/documents, multipart field "document".
// Each request runs its own verification machine, and its preview is
// released before the response is written whatever the outcome.
func (h *VerificationHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("document")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "missing document", map[string]string{"document": "is required"})
		return
	}
	if fh.Size > MaxDocumentSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "document too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "unreadable document", nil)
		return
	}
	defer func() { _ = f.Close() }()

	// The declared type comes from the client; sniff when it is missing.
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if mt, err := mimetype.DetectReader(f); err == nil {
			contentType = mt.String()
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			response.Error(c, http.StatusBadRequest, "unreadable document", nil)
			return
		}
	}

	ctx := c.Request.Context()
	m := verification.NewMachine(h.Classifier, h.Previews, h.Logger)
	if err := m.Select(ctx, verification.FileInput{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Content:     f,
	}); err != nil {
		if errors.Is(err, verification.ErrUnsupportedFileType) {
			verificationOutcomes.Add("unsupported", 1)
			response.Error(c, http.StatusUnsupportedMediaType, "Please upload an image file", nil)
			return
		}
		h.Logger.WithError(err).Warn("store preview failed")
		response.Error(c, http.StatusInternalServerError, "could not store document", nil)
		return
	}

	_, err = m.Verify(ctx)
	st := m.Snapshot()
	if rmErr := m.Remove(ctx); rmErr != nil {
		h.Logger.WithError(rmErr).Warn("release preview failed")
	}
	if st.Artifact != nil {
		st.Artifact.Preview = ""
	}

	switch {
	case err == nil:
		verificationOutcomes.Add("verified", 1)
		h.Logger.WithField("user_id", c.GetString(middleware.CtxUserID)).Info("student document verified")
		response.Success(c, http.StatusOK, st, "document verified", nil)
	case errors.Is(err, verification.ErrVerificationRejected):
		verificationOutcomes.Add("rejected", 1)
		response.Success(c, http.StatusOK, st, st.Reason, nil)
	default:
		response.Error(c, http.StatusServiceUnavailable, "verification unavailable, try again", nil)
	}
}
