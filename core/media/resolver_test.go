package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioshare/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRequestPath(t *testing.T) {
	tests := []struct {
		name      string
		escaped   string
		slug, rel string
	}{
		{"Plain", "music/artist/song.mp3", "music", "artist/song.mp3"},
		{"EncodedSpace", "music/My%20Song.mp3", "music", "My Song.mp3"},
		{"EncodedSlash", "music/artist%2Fsong.mp3", "music", "artist/song.mp3"},
		{"EncodedDots", "music/%2e%2e/%2e%2e/etc/passwd", "music", "../../etc/passwd"},
		{"EncodedTraversalInOneSegment", "music/..%2F..%2Fetc%2Fpasswd", "music", "../../etc/passwd"},
		{"SlugOnly", "music", "music", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slug, rel, err := SplitRequestPath(tt.escaped)
			require.NoError(t, err)
			assert.Equal(t, tt.slug, slug)
			assert.Equal(t, tt.rel, rel)
		})
	}

	_, _, err := SplitRequestPath("music/%zz.mp3")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestSafeJoin(t *testing.T) {
	root := VirtualRoot{Slug: "music", AbsolutePath: "/srv/music", Backend: storage.NewLocalBackend()}

	t.Run("Accepted", func(t *testing.T) {
		cases := map[string]string{
			"song.mp3":            "/srv/music/song.mp3",
			"artist/album/a.flac": "/srv/music/artist/album/a.flac",
			"artist/./a.mp3":      "/srv/music/artist/a.mp3",
			"artist/x/../a.mp3":   "/srv/music/artist/a.mp3",
			"artist//a.mp3":       "/srv/music/artist/a.mp3",
			"weird..name.mp3":     "/srv/music/weird..name.mp3",
		}
		for rel, want := range cases {
			got, err := SafeJoin(root, rel)
			require.NoError(t, err, rel)
			assert.Equal(t, want, got, rel)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		for _, rel := range []string{
			"",
			"..",
			"../etc/passwd",
			"../../etc/passwd",
			"a/../../etc/passwd",
			"a/b/../../..",
			"/etc/passwd",
			"a/..",
			".",
			"song.mp3\x00.jpg",
			"..hidden.mp3",
		} {
			_, err := SafeJoin(root, rel)
			assert.ErrorIs(t, err, ErrTraversal, "%q", rel)
		}
	})

	// 任何规范化后仍以 .. 开头的输入都必须被拒绝
	t.Run("AllEscapesRejected", func(t *testing.T) {
		prefixes := []string{"", "a/", "a/b/", "./", "a/./"}
		ups := []string{"..", "../..", "../../..", "../../../.."}
		suffixes := []string{"", "/etc/passwd", "/x.mp3", "/"}
		for _, p := range prefixes {
			for _, u := range ups {
				for _, s := range suffixes {
					rel := p + u + s
					depth := strings.Count(p, "/") - strings.Count(p, "./")
					if strings.Count(u, "..") <= depth {
						continue
					}
					_, err := SafeJoin(root, rel)
					assert.ErrorIs(t, err, ErrTraversal, "%q", rel)
				}
			}
		}
	})
}

func TestCanonicalizeAndStat(t *testing.T) {
	ctx := context.Background()
	root := newTestRoot(t, storage.NewLocalBackend())
	outside := filepath.Join(filepath.Dir(root.AbsolutePath), "Music2")
	writeFixture(t, filepath.Join(root.AbsolutePath, "artist", "a.mp3"), []byte("abc"))
	writeFixture(t, filepath.Join(outside, "secret.mp3"), []byte("secret"))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.mp3"), filepath.Join(root.AbsolutePath, "link.mp3")))

	t.Run("Regular", func(t *testing.T) {
		target := resolveTarget(t, root, "artist/a.mp3")
		realRoot, err := filepath.EvalSymlinks(root.AbsolutePath)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(target.Path, realRoot+string(filepath.Separator)))
		assert.EqualValues(t, 3, target.Size)
		assert.Equal(t, "audio/mpeg", target.Type.MIME)
	})

	t.Run("SymlinkEscape", func(t *testing.T) {
		candidate, err := SafeJoin(root, "link.mp3")
		require.NoError(t, err)
		_, err = Canonicalize(ctx, root, candidate)
		assert.ErrorIs(t, err, ErrTraversal)
	})

	t.Run("Missing", func(t *testing.T) {
		candidate, err := SafeJoin(root, "artist/missing.mp3")
		require.NoError(t, err)
		_, err = Canonicalize(ctx, root, candidate)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Directory", func(t *testing.T) {
		candidate, err := SafeJoin(root, "artist")
		require.NoError(t, err)
		resolved, err := Canonicalize(ctx, root, candidate)
		require.NoError(t, err)
		_, err = Stat(ctx, root, candidate, resolved)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStat_ClassifiesRequestedName(t *testing.T) {
	root := newTestRoot(t, storage.NewLocalBackend())
	blob := filepath.Join(root.AbsolutePath, "blobs", "abc123")
	writeFixture(t, blob, patterned(300))
	require.NoError(t, os.Symlink(blob, filepath.Join(root.AbsolutePath, "linked.mp3")))

	target := resolveTarget(t, root, "linked.mp3")
	assert.Equal(t, "audio/mpeg", target.Type.MIME)
	assert.True(t, target.Type.Streamable())
	assert.Equal(t, "abc123", filepath.Base(target.Path))
	assert.EqualValues(t, 300, target.Size)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		mime  string
		class CacheClass
	}{
		{"a.mp3", "audio/mpeg", ClassMedia},
		{"a.MP3", "audio/mpeg", ClassMedia},
		{"a.flac", "audio/flac", ClassMedia},
		{"a.m4a", "audio/mp4", ClassMedia},
		{"a.opus", "audio/opus", ClassMedia},
		{"cover.JPG", "image/jpeg", ClassImage},
		{"cover.webp", "image/webp", ClassImage},
		{"meta.json", "application/json", ClassGeneric},
		{"notes.txt", "application/octet-stream", ClassGeneric},
		{"noext", "application/octet-stream", ClassGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := ClassifyPath(tt.name)
			assert.Equal(t, tt.mime, ct.MIME)
			assert.Equal(t, tt.class, ct.Class)
		})
	}

	assert.Equal(t, "public, max-age=86400", ClassImage.CacheControl())
	assert.Equal(t, "public, max-age=3600", ClassMedia.CacheControl())
	assert.Equal(t, "public, max-age=3600", ClassGeneric.CacheControl())
	assert.True(t, Classify(".json").Buffered())
	assert.False(t, Classify("mp3").Buffered())
}
