package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"StegLab/pkg/config"
	perr "StegLab/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, compression string) *Store {
	t.Helper()
	s, err := New(&config.StorageConfig{ArtifactDir: t.TempDir(), Compression: compression})
	require.NoError(t, err)
	return s
}

func TestPutGet(t *testing.T) {
	s := newStore(t, "none")
	ctx := context.Background()

	a, err := s.Put(ctx, []byte("stego bytes"), "cover.png", "image/png", nil)
	require.NoError(t, err)
	_, err = uuid.Parse(a.Handle)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", a.Name)
	assert.Equal(t, int64(11), a.Size)
	assert.Len(t, a.Digest, 64)

	got, data, err := s.Get(ctx, a.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("stego bytes"), data)
	assert.Equal(t, a.Digest, got.Digest)
	assert.Equal(t, "image/png", got.ContentType)

	ref := got.Ref()
	assert.Equal(t, a.Handle, ref.Handle)
	assert.Equal(t, "cover.png", ref.Filename)

	// nothing is left behind in staging
	staged, err := os.ReadDir(filepath.Join(s.Root(), tmpDir))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestNameIsBaseOnly(t *testing.T) {
	s := newStore(t, "none")
	a, err := s.Put(context.Background(), []byte("x"), "../../etc/passwd", "text/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "passwd", a.Name)
	_, err = os.Stat(filepath.Join(s.Root(), a.Handle, contentFile))
	assert.NoError(t, err)
}

func TestHandleContainment(t *testing.T) {
	s := newStore(t, "none")
	ctx := context.Background()

	for _, h := range []string{
		"../escape",
		"..",
		"/etc/passwd",
		"a/b",
		`a\b`,
		"",
		"x..y",
	} {
		_, _, err := s.Get(ctx, h)
		assert.True(t, perr.IsKind(err, perr.KindArtifactPathInvalid), "handle %q: %v", h, err)
	}

	for _, h := range []string{uuid.NewString(), "not-a-uuid", tmpDir} {
		_, _, err := s.Get(ctx, h)
		assert.True(t, perr.IsKind(err, perr.KindArtifactNotFound), "handle %q: %v", h, err)
	}
}

func TestConcurrentPutsGetDistinctHandles(t *testing.T) {
	s := newStore(t, "none")
	const n = 32

	handles := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.Put(context.Background(), []byte{byte(i)}, "f.bin", "application/octet-stream", nil)
			assert.NoError(t, err)
			if a != nil {
				handles[i] = a.Handle
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, h := range handles {
		require.NotEmpty(t, h)
		assert.False(t, seen[h], "duplicate handle %s", h)
		seen[h] = true
		_, data, err := s.Get(context.Background(), h)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}

func TestCompanions(t *testing.T) {
	s := newStore(t, "none")
	ctx := context.Background()

	a, err := s.Put(ctx, []byte("carrier"), "doc.txt", "text/plain", map[string][]byte{".hidden": {1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden"}, a.Companions)

	data, ok, err := s.Companion(ctx, a.Handle, ".hidden")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, ok, err = s.Companion(ctx, a.Handle, ".slack")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Companion(ctx, a.Handle, "/../x")
	assert.True(t, perr.IsKind(err, perr.KindArtifactPathInvalid))

	_, err = s.Put(ctx, []byte("x"), "x", "", map[string][]byte{"../up": {1}})
	assert.True(t, perr.IsKind(err, perr.KindArtifactPathInvalid))
}

func TestCompression(t *testing.T) {
	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	for _, c := range []string{"zstd", "lz4"} {
		c := c
		t.Run(c, func(t *testing.T) {
			s := newStore(t, c)
			a, err := s.Put(context.Background(), text, "fox.txt", "text/plain", nil)
			require.NoError(t, err)
			assert.Equal(t, Compression(c), a.Compression)
			assert.Less(t, a.StoredSize, a.Size)

			_, data, err := s.Get(context.Background(), a.Handle)
			require.NoError(t, err)
			assert.Equal(t, text, data)
		})
	}

	// tiny inputs do not shrink and are stored raw
	s := newStore(t, "zstd")
	a, err := s.Put(context.Background(), []byte{7}, "b", "", nil)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, a.Compression)
}

func TestDigestMismatch(t *testing.T) {
	s := newStore(t, "none")
	a, err := s.Put(context.Background(), []byte("original"), "f", "", nil)
	require.NoError(t, err)

	path := filepath.Join(s.Root(), a.Handle, contentFile)
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

	_, _, err = s.Get(context.Background(), a.Handle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
	assert.True(t, perr.IsKind(err, perr.KindArtifactCorrupt))
	assert.Equal(t, "ArtifactCorrupt", perr.WireFrom(err).Kind)
}

func TestUnreadableContentIsCorrupt(t *testing.T) {
	s := newStore(t, "zstd")
	ctx := context.Background()
	a, err := s.Put(ctx, bytes.Repeat([]byte("compressible "), 64), "f", "", nil)
	require.NoError(t, err)
	require.Equal(t, CompressionZstd, a.Compression)

	path := filepath.Join(s.Root(), a.Handle, contentFile)
	require.NoError(t, os.WriteFile(path, []byte("not a zstd frame"), 0o644))
	_, _, err = s.Get(ctx, a.Handle)
	assert.True(t, perr.IsKind(err, perr.KindArtifactCorrupt))

	meta := filepath.Join(s.Root(), a.Handle, metaFile)
	require.NoError(t, os.WriteFile(meta, []byte{0xff, 0x00}, 0o644))
	_, err = s.Stat(ctx, a.Handle)
	assert.True(t, perr.IsKind(err, perr.KindArtifactCorrupt))
}

func TestDelete(t *testing.T) {
	s := newStore(t, "none")
	ctx := context.Background()
	a, err := s.Put(ctx, []byte("x"), "f", "", nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.Handle))
	_, _, err = s.Get(ctx, a.Handle)
	assert.True(t, perr.IsKind(err, perr.KindArtifactNotFound))
	assert.True(t, perr.IsKind(s.Delete(ctx, a.Handle), perr.KindArtifactNotFound))
}

func TestSweep(t *testing.T) {
	s := newStore(t, "none")
	ctx := context.Background()
	a, err := s.Put(ctx, []byte("x"), "f", "", nil)
	require.NoError(t, err)

	n, err := s.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(5 * time.Millisecond)
	n, err = s.Sweep(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, _, err = s.Get(ctx, a.Handle)
	assert.True(t, perr.IsKind(err, perr.KindArtifactNotFound))
}

func TestUnknownCompression(t *testing.T) {
	_, err := New(&config.StorageConfig{ArtifactDir: t.TempDir(), Compression: "brotli"})
	assert.Error(t, err)
}
