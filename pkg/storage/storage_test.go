package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "services/ABCD2345/photo.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/services/ABCD2345/photo.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "services", "ABCD2345", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	require.NoError(t, s.Delete(context.Background(), "services/ABCD2345/photo.jpg"))
	_, err = os.Stat(filepath.Join(dir, "services", "ABCD2345", "photo.jpg"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, s.Delete(context.Background(), "services/ABCD2345/photo.jpg"))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "foto_frente.jpg", ObjectName("foto frente.jpg"))
	assert.Equal(t, "passwd", ObjectName("../../etc/passwd"))
	assert.Equal(t, "file", ObjectName("..."))
	assert.Equal(t, "doc.pdf", ObjectName(`C:\Users\me\doc.pdf`))
}
