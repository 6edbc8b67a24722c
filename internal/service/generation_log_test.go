package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStorage) GetURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func newLogRepo(t *testing.T) *repository.GenerationLogRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))
	return repository.NewGenerationLogRepository(db)
}

func TestGenerationLogService_AppendUploads(t *testing.T) {
	objects := newMemoryStorage()
	svc := NewGenerationLogService(newLogRepo(t), objects, &GenerationLogConfig{Owner: "studio"})
	ctx := context.Background()

	err := svc.Append(ctx, domain.LogEntry{
		ID:        "job-1-p1-0-1",
		Type:      domain.EntryTypeMockup,
		Prompt:    "mug",
		DataURL:   EncodeDataURL("image/png", []byte("png-bytes")),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	err = svc.Append(ctx, domain.LogEntry{
		ID:        "job-1-p1-1-2",
		Type:      domain.EntryTypeMockup,
		Prompt:    "mug",
		Error:     "Generation blocked: SAFETY.",
		CreatedAt: time.Now().Add(time.Second),
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), objects.objects["generation_log/job-1-p1-0-1.png"])
	assert.Len(t, objects.objects, 1, "failed entries are not uploaded")

	entries, total, err := svc.List(ctx, repository.LogFilter{OwnerUID: "studio"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Failed())
	assert.Equal(t, "https://cdn.test/generation_log/job-1-p1-0-1.png", entries[1].DataURL)
	assert.Equal(t, "generation_log/job-1-p1-0-1.png", entries[1].PublicID)
}

func TestGenerationLogService_InlineWithoutStorage(t *testing.T) {
	svc := NewGenerationLogService(newLogRepo(t), nil, nil)
	ctx := context.Background()
	url := EncodeDataURL("image/png", []byte("x"))

	require.NoError(t, svc.Append(ctx, domain.LogEntry{ID: "e1", Type: domain.EntryTypeArtwork, DataURL: url}))

	entries, _, err := svc.List(ctx, repository.LogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, url, entries[0].DataURL)
	assert.Empty(t, entries[0].PublicID)
}

func TestGenerationLogService_DeleteSkipsStorageFailures(t *testing.T) {
	objects := newMemoryStorage()
	svc := NewGenerationLogService(newLogRepo(t), objects, nil)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, svc.Append(ctx, domain.LogEntry{
			ID:      id,
			Type:    domain.EntryTypeMockup,
			DataURL: EncodeDataURL("image/png", []byte(id)),
		}))
	}

	objects.deleteErr = errors.New("access denied")
	n, err := svc.Delete(ctx, []string{"e1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	objects.deleteErr = nil
	n, err = svc.Delete(ctx, []string{"e2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, objects.objects, "generation_log/e2.png")

	_, total, err := svc.List(ctx, repository.LogFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
