package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFileWithAge(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	modTime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	return path
}

func TestCleanupMediaDir(t *testing.T) {
	dir := t.TempDir()

	expired := writeFileWithAge(t, dir, "1_old.mp4", 48*time.Hour)
	expiredWeb := writeFileWithAge(t, dir, "1_web_old.mp4", 48*time.Hour)
	fresh := writeFileWithAge(t, dir, "2_new.mp4", time.Hour)

	cleaned := CleanupMediaDir(dir, 24*time.Hour)
	assert.Equal(t, 2, cleaned)

	_, err := os.Stat(expired)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(expiredWeb)
	assert.True(t, os.IsNotExist(err))

	// 未过期文件保留
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestCleanupMediaDir_SkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()

	subdir := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(subdir, 0755))
	modTime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(subdir, modTime, modTime))

	cleaned := CleanupMediaDir(dir, 24*time.Hour)
	assert.Equal(t, 0, cleaned)

	_, err := os.Stat(subdir)
	assert.NoError(t, err)
}

func TestCleanupMediaDir_EmptyDir(t *testing.T) {
	assert.Equal(t, 0, CleanupMediaDir(t.TempDir(), time.Hour))
}

func TestCleanupMediaDir_MissingDir(t *testing.T) {
	assert.Equal(t, 0, CleanupMediaDir("/nonexistent/media/dir", time.Hour))
	assert.Equal(t, 0, CleanupMediaDir("", time.Hour))
}

func TestService_StartStop(t *testing.T) {
	svc := NewService(t.TempDir(), 24)

	svc.Start()
	svc.Stop()
}

func TestService_ExpireDuration_Default(t *testing.T) {
	svc := NewService("/tmp", 0)
	assert.Equal(t, 24*time.Hour, svc.expireDuration())

	svc = NewService("/tmp", 6)
	assert.Equal(t, 6*time.Hour, svc.expireDuration())
}
