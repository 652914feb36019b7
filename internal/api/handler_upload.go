package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greybackend/internal/asset"
	"greybackend/pkg/logger"
)

type ImageUploader interface {
	Upload(ctx context.Context, payload, folder string) (string, error)
}

type BatchUploader interface {
	UploadMany(ctx context.Context, payloads []string, folder string) ([]string, error)
}

type UploadHandler struct {
	single ImageUploader
	batch  BatchUploader
	logger *zap.Logger
}

func NewUploadHandler(single ImageUploader, batch BatchUploader, log *zap.Logger) *UploadHandler {
	return &UploadHandler{single: single, batch: batch, logger: logger.OrNop(log)}
}

// UploadImage handles POST /api/upload/image
func (h *UploadHandler) UploadImage(c *gin.Context) {
	var req struct {
		Image  string `json:"image"`
		Folder string `json:"folder"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Image == "" {
		fail(c, http.StatusBadRequest, "Image data is required")
		return
	}

	ctx := c.Request.Context()
	imageURL, err := h.single.Upload(ctx, req.Image, req.Folder)
	if errors.Is(err, asset.ErrInvalidPayload) {
		fail(c, http.StatusBadRequest, "Image data must be a base64 data URI or base64 string")
		return
	}
	if err != nil {
		logger.WithTrace(ctx, h.logger).Error("image upload error", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imageUrl": imageURL})
}

// UploadImages handles POST /api/upload/images
func (h *UploadHandler) UploadImages(c *gin.Context) {
	var req struct {
		Images []string `json:"images"`
		Folder string   `json:"folder"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Images) == 0 {
		fail(c, http.StatusBadRequest, "Images array is required")
		return
	}
	if len(req.Images) > asset.MaxBatchSize {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Maximum %d images allowed", asset.MaxBatchSize))
		return
	}

	// reject the whole batch before any unit reaches the store
	for i, img := range req.Images {
		if _, err := asset.DecodePayload(img); err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Image %d: data must be a base64 data URI or base64 string", i+1))
			return
		}
	}

	ctx := c.Request.Context()
	imageURLs, err := h.batch.UploadMany(ctx, req.Images, req.Folder)
	if err != nil {
		logger.WithTrace(ctx, h.logger).Error("multiple images upload error", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "imageUrls": imageURLs})
}
