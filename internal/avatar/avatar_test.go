package avatar_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imanconnect/internal/avatar"
)

// a 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func TestSaveCopiesWithUniqueName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile_pictures")
	store := avatar.NewStore(dir, avatar.WithIDGenerator(sequentialIDs()))
	src := writeFile(t, "Me.PNG", pngBytes)

	path, err := store.Save("aisha", src, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aisha_id1.png"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	_, err = os.Stat(src)
	assert.NoError(t, err, "the source is left in place")
}

func TestSaveRemovesPrevious(t *testing.T) {
	dir := t.TempDir()
	store := avatar.NewStore(dir, avatar.WithIDGenerator(sequentialIDs()))
	src := writeFile(t, "a.png", pngBytes)

	first, err := store.Save("omar", src, "")
	require.NoError(t, err)
	second, err := store.Save("omar", src, first)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err), "previous picture should be deleted")
	_, err = os.Stat(second)
	assert.NoError(t, err)
}

func TestSaveLeavesForeignPreviousAlone(t *testing.T) {
	store := avatar.NewStore(t.TempDir())
	src := writeFile(t, "a.png", pngBytes)
	foreign := writeFile(t, "elsewhere.png", pngBytes)

	_, err := store.Save("omar", src, foreign)
	require.NoError(t, err)
	_, err = os.Stat(foreign)
	assert.NoError(t, err, "files outside the store are never deleted")
}

func TestSaveRejectsNonImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pics")
	store := avatar.NewStore(dir)
	src := writeFile(t, "notes.png", []byte("just some text, not a picture"))

	_, err := store.Save("omar", src, "")
	assert.ErrorIs(t, err, avatar.ErrNotImage)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "nothing is created for a rejected file")
}

func TestSaveMissingSource(t *testing.T) {
	store := avatar.NewStore(t.TempDir())
	_, err := store.Save("omar", filepath.Join(t.TempDir(), "missing.png"), "")
	assert.Error(t, err)
}
