package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emsd/school-billing-api/internal/service"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
	"github.com/emsd/school-billing-api/pkg/response"
)

// FileHandler serves archived files referenced by signed tokens.
type FileHandler struct {
	archive *service.ArchiveService
}

func NewFileHandler(archive *service.ArchiveService) *FileHandler {
	return &FileHandler{archive: archive}
}

// Download godoc
// @Summary Download an archived file
// @Description Serve a file referenced by a signed token, no session required
// @Tags Payments
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	token := c.Param("token")
	file, filename, err := h.archive.Open(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
