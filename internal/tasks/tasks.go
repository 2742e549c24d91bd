package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoders for image.Decode
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeImageThumbnail = "image:thumbnail"
)

// QueueImages is the queue image tasks run on.
const QueueImages = "images"

const thumbnailQuality = 85

// ThumbnailKey is the object key of the derived thumbnail of imageKey.
func ThumbnailKey(imageKey string) string {
	return "thumbnails/" + imageKey
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

// enqueuer is the part of *asynq.Client the queue uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ThumbnailQueue schedules thumbnail generation for uploaded listing images.
type ThumbnailQueue struct {
	client enqueuer
	logger *zap.Logger
}

func NewThumbnailQueue(client *asynq.Client, logger *zap.Logger) *ThumbnailQueue {
	return &ThumbnailQueue{client: client, logger: logger}
}

// ThumbnailPayload is the payload of TypeImageThumbnail.
type ThumbnailPayload struct {
	ImageKey     string `json:"image_key"`
	ThumbnailKey string `json:"thumbnail_key"`
}

func (q *ThumbnailQueue) EnqueueThumbnail(ctx context.Context, key string) error {
	payload, err := json.Marshal(ThumbnailPayload{ImageKey: key, ThumbnailKey: ThumbnailKey(key)})
	if err != nil {
		return fmt.Errorf("failed to marshal thumbnail payload: %w", err)
	}
	task := asynq.NewTask(TypeImageThumbnail, payload, asynq.Queue(QueueImages), asynq.MaxRetry(5))
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue thumbnail task for %s: %w", key, err)
	}
	q.logger.Debug("Thumbnail task enqueued", zap.String("task_id", info.ID), zap.String("key", key))
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg     *config.Config
	objects storage.IObjectStorage
	logger  *zap.Logger
}

func NewTaskProcessor(cfg *config.Config, objects storage.IObjectStorage, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, objects: objects, logger: logger}
}

// NewServeMux registers every handler of the processor.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeImageThumbnail, p.HandleImageThumbnailTask)
	return mux
}

// StartServer starts an Asynq server for the image queue. Stop it with Shutdown.
func StartServer(cfg *config.Config, p *TaskProcessor, logger *zap.Logger) (*asynq.Server, error) {
	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				QueueImages: 1,
			},
			Logger: logger.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)
	if err := srv.Start(NewServeMux(p)); err != nil {
		return nil, fmt.Errorf("could not start Asynq server: %w", err)
	}
	logger.Info("Registered image task handlers", zap.String("queue", QueueImages))
	return srv, nil
}

// --- Task Handlers ---

// HandleImageThumbnailTask writes a JPEG thumbnail of an uploaded image next to it.
// The original object is never modified.
func (p *TaskProcessor) HandleImageThumbnailTask(ctx context.Context, t *asynq.Task) error {
	var payload ThumbnailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal thumbnail payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ImageKey == "" {
		return fmt.Errorf("thumbnail payload without image key: %w", asynq.SkipRetry)
	}
	if payload.ThumbnailKey == "" {
		payload.ThumbnailKey = ThumbnailKey(payload.ImageKey)
	}
	log := p.logger.With(zap.String("key", payload.ImageKey))

	body, err := p.objects.Get(ctx, payload.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Warn("Image for thumbnail not found")
			return fmt.Errorf("image object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image: %w", err)
	}
	defer body.Close()

	limit := config.MaxBytes(p.cfg.ListingImageMaxSizeMB)
	imgData, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imgData)) > limit {
		log.Warn("Image exceeds max size, skipping thumbnail", zap.Int64("max_bytes", limit))
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Warn("Cannot decode image", zap.Error(err))
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ThumbnailMaxDimension)
	thumb := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	err = p.objects.Put(ctx, payload.ThumbnailKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{
		ContentType: "image/jpeg",
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	log.Info("Thumbnail written",
		zap.String("format", format),
		zap.String("thumbnail_key", payload.ThumbnailKey),
		zap.Int("width", thumb.Bounds().Dx()),
		zap.Int("height", thumb.Bounds().Dy()))
	return nil
}
