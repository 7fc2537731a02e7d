// internal/handlers/bundle/bundle_handler.go
package bundle

import (
	"io"
	"net/http"

	"panel-service/internal/pkg/response"
	"panel-service/internal/repository/filestore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Bundle files are small JSON documents; anything bigger is not a bundle.
const maxBundleSize = 10 << 20 // 10MB

type BundleHandler struct {
	store  *filestore.BundleStore
	logger *zap.Logger
}

func NewBundleHandler(store *filestore.BundleStore, logger *zap.Logger) *BundleHandler {
	return &BundleHandler{
		store:  store,
		logger: logger,
	}
}

// Upload stores a credential bundle file. Multipart with a single JSON file
// under the field name "bundle"; the file name keys the bundle by domain.
func (h *BundleHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("bundle")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "missing bundle file", err)
		return
	}
	if file.Size > maxBundleSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "bundle file too large", nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to open bundle file", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBundleSize))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read bundle file", err)
		return
	}

	if err := h.store.SaveRaw(file.Filename, data); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid bundle", err)
		return
	}

	h.logger.Info("bundle uploaded",
		zap.String("file", file.Filename),
		zap.Int("bytes", len(data)),
	)

	response.Success(c, http.StatusOK, "bundle stored", nil)
}

// Download returns the stored bundle file for a domain.
func (h *BundleHandler) Download(c *gin.Context) {
	fileName := c.Param("domainFile")

	data, err := h.store.RawFile(fileName)
	if err != nil {
		response.FromError(c, err, "bundle not found")
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}
