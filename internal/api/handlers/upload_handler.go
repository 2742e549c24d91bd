package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/api/middleware"
	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/services"
)

// MaxMultipartMemory bounds the part of a multipart body kept in memory; the rest spills to temp files.
const MaxMultipartMemory = 32 << 20

// MaxListingImagesPerRequest caps the "files" parts of one listing-images upload.
const MaxListingImagesPerRequest = 20

// multipartOverheadBytes is allowed on top of the file limits for part headers and boundaries.
const multipartOverheadBytes = 1 << 20

// UploadHandler receives image uploads as multipart forms.
type UploadHandler struct {
	assets   services.IAssetService
	profiles services.IProfileService
	logger   *zap.Logger

	listingBodyLimit int64
	profileBodyLimit int64
}

func NewUploadHandler(cfg *config.Config, assets services.IAssetService, profiles services.IProfileService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		assets:           assets,
		profiles:         profiles,
		logger:           logger,
		listingBodyLimit: config.MaxBytes(cfg.ListingImageMaxSizeMB)*MaxListingImagesPerRequest + multipartOverheadBytes,
		profileBodyLimit: config.MaxBytes(cfg.ProfileImageMaxSizeMB) + multipartOverheadBytes,
	}
}

// limitBody bounds the request body before any multipart parsing spools it to disk.
// It reports false, after answering 413, when the declared length is already too large.
func limitBody(c *gin.Context, limit int64) bool {
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Request body too large"})
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return true
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// UploadListingImages handles POST /v1/upload/listing-images with one or more "files" parts.
// Each file succeeds or fails on its own; the response lists them in request order.
func (h *UploadHandler) UploadListingImages(c *gin.Context) {
	if !limitBody(c, h.listingBodyLimit) {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Expected a multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No files provided"})
		return
	}
	if len(headers) > MaxListingImagesPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("At most %d files per request", MaxListingImagesPerRequest)})
		return
	}

	files := make([]services.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = uploadFileFrom(fh)
	}

	results, err := h.assets.UploadBatch(c.Request.Context(), middleware.CallerFromContext(c), services.NamespaceListing, files)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
}

// UploadProfileImage handles POST /v1/upload/profile-image with a single "file" part
// and points the caller's profile at the stored image.
func (h *UploadHandler) UploadProfileImage(c *gin.Context) {
	if !limitBody(c, h.profileBodyLimit) {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file provided"})
		return
	}

	ctx := c.Request.Context()
	caller := middleware.CallerFromContext(c)
	result, err := h.assets.Upload(ctx, caller, services.NamespaceProfile, uploadFileFrom(fh))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.profiles.SetProfileImage(ctx, caller, result.URL); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (h *UploadHandler) respondError(c *gin.Context, err error) {
	var assetErr *services.AssetError
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
	case errors.As(err, &assetErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": assetErr.Error()})
	default:
		_ = c.Error(err)
		h.logger.Error("Upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Upload failed"})
	}
}

func uploadFileFrom(fh *multipart.FileHeader) services.UploadFile {
	return services.UploadFile{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
