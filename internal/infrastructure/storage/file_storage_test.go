package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveAndRead(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalFileStorage(dir, zap.NewNop())
	ctx := context.Background()

	content := []byte(":20:STARTUMS\n:25:NL91ABNA0417164300\n")
	require.NoError(t, s.Save(ctx, "2024-03-15/1710496800-march.sta", content))

	assert.FileExists(t, filepath.Join(dir, "2024-03-15", "1710496800-march.sta"))
	assert.True(t, s.Exists(ctx, "2024-03-15/1710496800-march.sta"))

	got, err := s.Read(ctx, "2024-03-15/1710496800-march.sta")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	entries, err := os.ReadDir(filepath.Join(dir, "2024-03-15"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestLocalFileStorage_Traversal(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalFileStorage(filepath.Join(dir, "archive"), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "../../etc/passwd", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, "archive", "etc", "passwd"))

	_, err := s.Read(ctx, "../outside.sta")
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.False(t, s.Exists(ctx, "../outside.sta"))

	_, err = s.Read(ctx, "missing.sta")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-15/123-march.sta", "2024-03-15/123-march.sta"},
		{"../../etc/passwd", "etc/passwd"},
		{"a b/c$d.sta", "ab/cd.sta"},
		{"/abs//path/", "abs/path"},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePath(tt.in))
		})
	}
}
