package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, os.WriteFile(name, data, 0644))
}

// TestLocalBackend_Canonical 测试符号链接逃逸检测
func TestLocalBackend_Canonical(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend()

	base := t.TempDir()
	root := filepath.Join(base, "audio")
	sibling := filepath.Join(base, "audio2")
	writeFile(t, filepath.Join(root, "artist", "song.mp3"), []byte("x"))
	writeFile(t, filepath.Join(sibling, "secret.mp3"), []byte("s"))

	t.Run("InsideRoot", func(t *testing.T) {
		got, err := b.Canonical(ctx, root, b.Join(root, "artist/song.mp3"))
		require.NoError(t, err)
		realRoot, _ := filepath.EvalSymlinks(root)
		assert.Equal(t, filepath.Join(realRoot, "artist", "song.mp3"), got)
	})

	t.Run("SymlinkEscape", func(t *testing.T) {
		link := filepath.Join(root, "escape.mp3")
		require.NoError(t, os.Symlink(filepath.Join(sibling, "secret.mp3"), link))
		_, err := b.Canonical(ctx, root, link)
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("SymlinkInsideRoot", func(t *testing.T) {
		link := filepath.Join(root, "alias.mp3")
		require.NoError(t, os.Symlink(filepath.Join(root, "artist", "song.mp3"), link))
		_, err := b.Canonical(ctx, root, link)
		assert.NoError(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := b.Canonical(ctx, root, b.Join(root, "nope.mp3"))
		assert.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("ThroughFile", func(t *testing.T) {
		_, err := b.Canonical(ctx, root, b.Join(root, "artist/song.mp3/x"))
		assert.ErrorIs(t, err, ErrNotExist)
	})
}

func TestLocalBackend_StatOpen(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.ogg"), []byte("0123456789"))

	info, err := b.Stat(ctx, filepath.Join(root, "a.ogg"))
	require.NoError(t, err)
	assert.True(t, info.Regular)
	assert.EqualValues(t, 10, info.Size)

	dir, err := b.Stat(ctx, root)
	require.NoError(t, err)
	assert.False(t, dir.Regular)

	_, err = b.Stat(ctx, filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrNotExist)

	f, err := b.Open(ctx, filepath.Join(root, "a.ogg"))
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Seek(4, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(rest))
}

func TestMinioBackend_PathHandling(t *testing.T) {
	b := NewMinioBackend(nil)
	ctx := context.Background()

	assert.Equal(t, "music/lib/artist/a.mp3", b.Join("music/lib", "artist/a.mp3"))

	got, err := b.Canonical(ctx, "music/lib", "music/lib/artist/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "music/lib/artist/a.mp3", got)

	_, err = b.Canonical(ctx, "music/lib", "music/library/a.mp3")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = b.Canonical(ctx, "music/lib", "music/other/a.mp3")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	bucket, key := SplitObjectPath("music/lib/artist/a.mp3")
	assert.Equal(t, "music", bucket)
	assert.Equal(t, "lib/artist/a.mp3", key)

	bucket, key = SplitObjectPath("music")
	assert.Equal(t, "music", bucket)
	assert.Equal(t, "", key)
}

func TestLocalBackend_Probe(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), []byte("x"))

	assert.NoError(t, b.Probe(ctx, root))
	assert.Error(t, b.Probe(ctx, filepath.Join(root, "a.mp3")))
	assert.ErrorIs(t, b.Probe(ctx, filepath.Join(root, "gone")), ErrNotExist)
}

func TestLocalBackend_List(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBackend()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mp3"), []byte("12345"))
	writeFile(t, filepath.Join(root, "album", "b.flac"), []byte("123"))
	writeFile(t, filepath.Join(root, "album", "c.jpg"), []byte("1"))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.mp3"), filepath.Join(root, "link.mp3")))

	objects, stats, err := b.List(ctx, root, "")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalObjects)
	assert.EqualValues(t, 9, stats.TotalSize)
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"a.mp3", "album/b.flac", "album/c.jpg"}, keys)

	objects, stats, err = b.List(ctx, root, "album/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
	assert.EqualValues(t, 4, stats.TotalSize)

	_, _, err = b.List(ctx, filepath.Join(root, "missing"), "")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
	assert.Equal(t, "2.0 GB", FormatSize(2<<30))
}
