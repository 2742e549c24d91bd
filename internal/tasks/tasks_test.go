package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/storage"
)

// --- Mocks ---

type MockObjectStorage struct {
	mock.Mock
	written map[string][]byte
}

func (m *MockObjectStorage) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	data, _ := io.ReadAll(body)
	if m.written == nil {
		m.written = map[string][]byte{}
	}
	m.written[key] = data
	args := m.Called(ctx, key, size, opts)
	return args.Error(0)
}

func (m *MockObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(bytes.NewReader(args.Get(0).([]byte))), args.Error(1)
}

func (m *MockObjectStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{ListingImageMaxSizeMB: 10, ThumbnailMaxDimension: 400}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func thumbnailTask(t *testing.T, key string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(ThumbnailPayload{ImageKey: key, ThumbnailKey: ThumbnailKey(key)})
	require.NoError(t, err)
	return asynq.NewTask(TypeImageThumbnail, payload)
}

// --- Tests ---

func TestHandleImageThumbnailTask_Success(t *testing.T) {
	objects := new(MockObjectStorage)
	key := "property-images/property-u1-1-0.png"
	objects.On("Get", mock.Anything, key).Return(pngBytes(t, 800, 600), nil)
	objects.On("Put", mock.Anything, "thumbnails/"+key, mock.Anything,
		storage.PutOptions{ContentType: "image/jpeg", Overwrite: true}).Return(nil)

	p := NewTaskProcessor(testConfig(), objects, zap.NewNop())
	err := p.HandleImageThumbnailTask(context.Background(), thumbnailTask(t, key))
	require.NoError(t, err)
	objects.AssertExpectations(t)

	thumb, err := jpeg.Decode(bytes.NewReader(objects.written["thumbnails/"+key]))
	require.NoError(t, err)
	assert.Equal(t, 400, thumb.Bounds().Dx())
	assert.Equal(t, 300, thumb.Bounds().Dy())
}

func TestHandleImageThumbnailTask_SmallImageKeepsSize(t *testing.T) {
	objects := new(MockObjectStorage)
	key := "property-images/small.png"
	objects.On("Get", mock.Anything, key).Return(pngBytes(t, 120, 80), nil)
	objects.On("Put", mock.Anything, ThumbnailKey(key), mock.Anything, mock.Anything).Return(nil)

	p := NewTaskProcessor(testConfig(), objects, zap.NewNop())
	require.NoError(t, p.HandleImageThumbnailTask(context.Background(), thumbnailTask(t, key)))

	thumb, err := jpeg.Decode(bytes.NewReader(objects.written[ThumbnailKey(key)]))
	require.NoError(t, err)
	assert.Equal(t, 120, thumb.Bounds().Dx())
	assert.Equal(t, 80, thumb.Bounds().Dy())
}

func TestHandleImageThumbnailTask_SkipRetry(t *testing.T) {
	t.Run("invalid payload", func(t *testing.T) {
		p := NewTaskProcessor(testConfig(), new(MockObjectStorage), zap.NewNop())
		err := p.HandleImageThumbnailTask(context.Background(), asynq.NewTask(TypeImageThumbnail, []byte("{")))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("missing object", func(t *testing.T) {
		objects := new(MockObjectStorage)
		objects.On("Get", mock.Anything, "gone.png").Return(nil, storage.ErrObjectNotFound)
		p := NewTaskProcessor(testConfig(), objects, zap.NewNop())
		err := p.HandleImageThumbnailTask(context.Background(), thumbnailTask(t, "gone.png"))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("corrupt image", func(t *testing.T) {
		objects := new(MockObjectStorage)
		objects.On("Get", mock.Anything, "bad.png").Return([]byte("not an image"), nil)
		p := NewTaskProcessor(testConfig(), objects, zap.NewNop())
		err := p.HandleImageThumbnailTask(context.Background(), thumbnailTask(t, "bad.png"))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		objects.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleImageThumbnailTask_StorageErrorIsRetried(t *testing.T) {
	objects := new(MockObjectStorage)
	objects.On("Get", mock.Anything, "a.png").Return(nil, errors.New("connection reset"))
	p := NewTaskProcessor(testConfig(), objects, zap.NewNop())

	err := p.HandleImageThumbnailTask(context.Background(), thumbnailTask(t, "a.png"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestThumbnailQueue_EnqueueThumbnail(t *testing.T) {
	client := new(MockEnqueuer)
	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var payload ThumbnailPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return task.Type() == TypeImageThumbnail &&
			payload.ImageKey == "property-images/a.jpg" &&
			payload.ThumbnailKey == "thumbnails/property-images/a.jpg"
	})).Return(&asynq.TaskInfo{ID: "task-1", Queue: QueueImages}, nil)

	q := &ThumbnailQueue{client: client, logger: zap.NewNop()}
	require.NoError(t, q.EnqueueThumbnail(context.Background(), "property-images/a.jpg"))
	client.AssertExpectations(t)
}

func TestThumbnailQueue_EnqueueError(t *testing.T) {
	client := new(MockEnqueuer)
	client.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	q := &ThumbnailQueue{client: client, logger: zap.NewNop()}
	err := q.EnqueueThumbnail(context.Background(), "k")
	assert.ErrorContains(t, err, "redis down")
}
