package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-e/apiserver/config"
)

func TestPackageImageKey(t *testing.T) {
	assert.Equal(t, "packages/abc/image.png", PackageImageKey("abc", "Logo.PNG"))
	assert.Equal(t, "packages/abc/image.jpg", PackageImageKey("abc", "../../etc/x.jpg"))
	assert.Equal(t, "packages/abc/image.gif", PackageImageKey("abc", `C:\tmp\a.gif`))
	assert.Equal(t, "packages/abc/image", PackageImageKey("abc", "noext"))
}

func TestOpenSelectsBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "minio"})
	assert.Error(t, err)

	backend, err := Open(context.Background(), config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, backend)
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Put(ctx, "k", strings.NewReader("img"), 3, "image/png"))
	obj, err := s.Get(ctx, "k")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
	assert.Equal(t, "image/png", obj.ContentType)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
