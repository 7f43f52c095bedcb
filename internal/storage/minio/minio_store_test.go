package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/jukebox/internal/storage"
)

func TestKey(t *testing.T) {
	s := NewStore(nil, "bucket", "jukebox/")
	assert.Equal(t, "jukebox/songs.json", s.key("songs.json"))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "songs.json", s.key("songs.json"))
}

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("JUKEBOX_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-jukebox"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")
	var _ storage.Store = store

	_, err = store.Get(ctx, "missing.json")
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, store.Put(ctx, "songs.json", []byte(`[{"id":1}]`)))
	data, err := store.Get(ctx, "songs.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(data))

	names, err := store.List(ctx, "songs")
	require.NoError(t, err)
	assert.Contains(t, names, "songs.json")

	require.NoError(t, store.Delete(ctx, "songs.json"))
	_, err = store.Get(ctx, "songs.json")
	assert.True(t, storage.IsNotFound(err))
}
