package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/metrics"
	"github.com/ksw5434/realestate/internal/models"
	"github.com/ksw5434/realestate/internal/storage"
)

// AssetNamespace selects the key prefix and size limit of an upload.
type AssetNamespace string

const (
	NamespaceListing AssetNamespace = "listing"
	NamespaceProfile AssetNamespace = "profile"
)

// UploadFile is one file received from a client.
type UploadFile struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadResult is the outcome of one file. Exactly one of URL and Error is set.
type UploadResult struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Key      string `json:"key,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IThumbnailQueue schedules derived-image generation for a stored object.
type IThumbnailQueue interface {
	EnqueueThumbnail(ctx context.Context, key string) error
}

type IAssetService interface {
	// Upload stores a single file. Rejections come back as *AssetError.
	Upload(ctx context.Context, caller models.Caller, ns AssetNamespace, file UploadFile) (*UploadResult, error)
	// UploadBatch stores files one after another. Per-file failures are reported in the
	// results and never stop the remaining files; the error is only for the whole call.
	UploadBatch(ctx context.Context, caller models.Caller, ns AssetNamespace, files []UploadFile) ([]UploadResult, error)
}

type assetService struct {
	storage    storage.IObjectStorage
	thumbnails IThumbnailQueue
	limits     map[AssetNamespace]int64
	metrics    *metrics.MetricsManager
	logger     *zap.Logger
	now        func() time.Time
}

// NewAssetService creates the upload pipeline. thumbnails may be nil.
func NewAssetService(cfg *config.Config, objects storage.IObjectStorage, thumbnails IThumbnailQueue, m *metrics.MetricsManager, logger *zap.Logger) IAssetService {
	return &assetService{
		storage:    objects,
		thumbnails: thumbnails,
		limits: map[AssetNamespace]int64{
			NamespaceListing: config.MaxBytes(cfg.ListingImageMaxSizeMB),
			NamespaceProfile: config.MaxBytes(cfg.ProfileImageMaxSizeMB),
		},
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *assetService) Upload(ctx context.Context, caller models.Caller, ns AssetNamespace, file UploadFile) (*UploadResult, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return s.store(ctx, caller, ns, 0, file)
}

func (s *assetService) UploadBatch(ctx context.Context, caller models.Caller, ns AssetNamespace, files []UploadFile) ([]UploadResult, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	results := make([]UploadResult, 0, len(files))
	for i, file := range files {
		res, err := s.store(ctx, caller, ns, i, file)
		if err != nil {
			results = append(results, UploadResult{Index: i, FileName: file.FileName, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func (s *assetService) store(ctx context.Context, caller models.Caller, ns AssetNamespace, index int, file UploadFile) (*UploadResult, error) {
	if err := s.check(ns, file); err != nil {
		s.count(ns, "rejected")
		return nil, err
	}

	key := s.objectKey(ns, caller.UserID, index, file)
	body, err := file.Open()
	if err != nil {
		s.count(ns, "failed")
		return nil, &AssetError{FileName: file.FileName, Reason: "cannot read file", Err: err}
	}
	defer body.Close()

	err = s.storage.Put(ctx, key, body, file.Size, storage.PutOptions{ContentType: file.ContentType})
	if err != nil {
		s.count(ns, "failed")
		if errors.Is(err, storage.ErrObjectExists) {
			return nil, &AssetError{FileName: file.FileName, Reason: "object already exists", Err: err}
		}
		return nil, &AssetError{FileName: file.FileName, Reason: "upload failed", Err: err}
	}
	s.count(ns, "stored")

	if ns == NamespaceListing && s.thumbnails != nil {
		if err := s.thumbnails.EnqueueThumbnail(ctx, key); err != nil {
			s.logger.Warn("Failed to enqueue thumbnail", zap.String("key", key), zap.Error(err))
		}
	}

	return &UploadResult{Index: index, FileName: file.FileName, Key: key, URL: s.storage.PublicURL(key)}, nil
}

// check runs before any storage call.
func (s *assetService) check(ns AssetNamespace, file UploadFile) error {
	limit, ok := s.limits[ns]
	if !ok {
		return &AssetError{FileName: file.FileName, Reason: fmt.Sprintf("unknown upload namespace %q", ns)}
	}
	if !strings.HasPrefix(strings.ToLower(file.ContentType), "image/") {
		return &AssetError{FileName: file.FileName, Reason: "only image files can be uploaded"}
	}
	if file.Size > limit {
		return &AssetError{FileName: file.FileName, Reason: fmt.Sprintf("file is larger than %dMB", limit>>20)}
	}
	return nil
}

// objectKey combines owner, a nanosecond timestamp and, for listing images, the batch index.
func (s *assetService) objectKey(ns AssetNamespace, owner string, index int, file UploadFile) string {
	ts := s.now().UnixNano()
	ext := fileExtension(file)
	if ns == NamespaceProfile {
		return fmt.Sprintf("profile-images/profile-%s-%d.%s", owner, ts, ext)
	}
	return fmt.Sprintf("property-images/property-%s-%d-%d.%s", owner, ts, index, ext)
}

// fileExtension prefers the file name's extension and falls back to the content subtype.
func fileExtension(file UploadFile) string {
	if ext := strings.TrimPrefix(path.Ext(file.FileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	subtype := strings.TrimPrefix(strings.ToLower(file.ContentType), "image/")
	if i := strings.IndexAny(subtype, ";+"); i >= 0 {
		subtype = subtype[:i]
	}
	if subtype == "" || subtype == "jpeg" {
		return "jpg"
	}
	return subtype
}

func (s *assetService) count(ns AssetNamespace, outcome string) {
	if s.metrics != nil {
		s.metrics.AssetUploadsTotal.WithLabelValues(string(ns), outcome).Inc()
	}
}
