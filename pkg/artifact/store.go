// Package artifact is the sandboxed, write-once file store for stego outputs
// and extracted payloads. Each artifact is a directory named by its UUID
// handle holding the content, its companions and a CBOR metadata record.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"StegLab/pkg/config"
	perr "StegLab/pkg/errors"
	"StegLab/pkg/logger"

	"github.com/google/uuid"
)

const (
	tmpDir      = "tmp"
	contentFile = "content"
	metaFile    = "meta.cbor"
)

// Store roots every artifact under one directory
type Store struct {
	root        string
	compression Compression
	log         *logger.Logger
}

// New creates the store described by cfg, creating the root and tmp
// directories if needed
func New(cfg *config.StorageConfig) (*Store, error) {
	if cfg.ArtifactDir == "" {
		return nil, fmt.Errorf("artifact_dir required")
	}
	root, err := filepath.Abs(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact_dir: %w", err)
	}
	c, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, tmpDir), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{root: root, compression: c, log: logger.Named("artifact")}, nil
}

// Root returns the absolute sandbox root
func (s *Store) Root() string { return s.root }

// Put stores data and its companions under a fresh handle. Everything is
// written into tmp/<handle> first and the directory is renamed into place,
// so readers never observe a partial artifact.
func (s *Store) Put(ctx context.Context, data []byte, name, contentType string, companions map[string][]byte) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for suffix := range companions {
		if err := checkSuffix(suffix); err != nil {
			return nil, err
		}
	}

	handle, staging, err := s.allocate()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	stored, used, err := compress(data, s.compression)
	if err != nil {
		return nil, err
	}
	a := &Artifact{
		Handle:      handle,
		Name:        filepath.Base(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		Digest:      Digest(data),
		Compression: used,
		StoredSize:  int64(len(stored)),
		Created:     time.Now().UTC(),
	}
	if a.Name == "." || a.Name == string(filepath.Separator) {
		a.Name = contentFile
	}
	if err := os.WriteFile(filepath.Join(staging, contentFile), stored, 0o644); err != nil {
		return nil, fmt.Errorf("write content: %w", err)
	}
	for suffix, body := range companions {
		if err := os.WriteFile(filepath.Join(staging, contentFile+suffix), body, 0o644); err != nil {
			return nil, fmt.Errorf("write companion %s: %w", suffix, err)
		}
		a.Companions = append(a.Companions, suffix)
	}
	sort.Strings(a.Companions)

	meta, err := marshalMeta(a)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, metaFile), meta, 0o644); err != nil {
		return nil, fmt.Errorf("write meta: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	final := filepath.Join(s.root, handle)
	if _, err := os.Lstat(final); err == nil {
		return nil, fmt.Errorf("artifact %s already exists", handle)
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("commit artifact: %w", err)
	}
	committed = true

	s.log.Debug().
		Str("handle", handle).
		Int64("size", a.Size).
		Str("compression", string(a.Compression)).
		Int("companions", len(a.Companions)).
		Msg("artifact stored")
	return a, nil
}

// allocate reserves a staging directory; Mkdir fails on an existing name, so
// two writers can never share a handle
func (s *Store) allocate() (string, string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		handle := uuid.NewString()
		staging := filepath.Join(s.root, tmpDir, handle)
		err := os.Mkdir(staging, 0o755)
		if err == nil {
			if _, err := os.Lstat(filepath.Join(s.root, handle)); err == nil {
				os.Remove(staging)
				continue
			}
			return handle, staging, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("allocate artifact: %w", err)
		}
	}
	return "", "", fmt.Errorf("allocate artifact: no free handle")
}

// Stat returns the metadata for handle
func (s *Store) Stat(ctx context.Context, handle string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, perr.NotFoundf("artifact %q not found", handle)
		}
		return nil, fmt.Errorf("read meta: %w", err)
	}
	a, err := unmarshalMeta(raw)
	if err != nil {
		return nil, perr.Corruptf(err, "decode meta for %s", handle)
	}
	return a, nil
}

// Get returns the artifact and its content after checking the blake3 digest
func (s *Store) Get(ctx context.Context, handle string) (*Artifact, []byte, error) {
	a, err := s.Stat(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	dir, _ := s.resolve(handle)
	stored, err := os.ReadFile(filepath.Join(dir, contentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, perr.NotFoundf("artifact %q has no content", handle)
		}
		return nil, nil, fmt.Errorf("read content: %w", err)
	}
	data, err := decompress(stored, a.Compression, int(a.Size))
	if err != nil {
		return nil, nil, perr.Corruptf(err, "artifact %s", handle)
	}
	if got := Digest(data); got != a.Digest {
		return nil, nil, perr.Corruptf(nil, "artifact %s: digest mismatch (stored %s, computed %s)", handle, a.Digest, got)
	}
	return a, data, nil
}

// Companion returns the companion stored with suffix. A missing companion on
// an existing artifact is reported as ok=false, not an error.
func (s *Store) Companion(ctx context.Context, handle, suffix string) ([]byte, bool, error) {
	if err := checkSuffix(suffix); err != nil {
		return nil, false, err
	}
	a, err := s.Stat(ctx, handle)
	if err != nil {
		return nil, false, err
	}
	if !a.HasCompanion(suffix) {
		return nil, false, nil
	}
	dir, _ := s.resolve(handle)
	data, err := os.ReadFile(filepath.Join(dir, contentFile+suffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read companion: %w", err)
	}
	return data, true, nil
}

// Delete removes the artifact and its companions
func (s *Store) Delete(ctx context.Context, handle string) error {
	if _, err := s.Stat(ctx, handle); err != nil {
		return err
	}
	dir, _ := s.resolve(handle)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove artifact: %w", err)
	}
	s.log.Debug().Str("handle", handle).Msg("artifact deleted")
	return nil
}

// Sweep removes artifacts and abandoned staging directories older than
// retention and returns how many artifacts were removed. A zero retention
// keeps everything.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read artifact dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.IsDir() || e.Name() == tmpDir {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		created, err := s.created(ctx, e)
		if err != nil {
			s.log.Warn().Err(err).Str("handle", e.Name()).Msg("sweep skipped artifact")
			continue
		}
		if created.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return removed, fmt.Errorf("remove artifact: %w", err)
		}
		removed++
	}

	staging, err := os.ReadDir(filepath.Join(s.root, tmpDir))
	if err == nil {
		for _, e := range staging {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			os.RemoveAll(filepath.Join(s.root, tmpDir, e.Name()))
		}
	}

	s.log.Info().Int("removed", removed).Dur("retention", retention).Msg("artifact sweep")
	return removed, nil
}

func (s *Store) created(ctx context.Context, e fs.DirEntry) (time.Time, error) {
	a, err := s.Stat(ctx, e.Name())
	if err == nil {
		return a.Created, nil
	}
	info, ierr := e.Info()
	if ierr != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// resolve maps a handle to its directory. Handles that could name anything
// outside the root are rejected before the filesystem is touched.
func (s *Store) resolve(handle string) (string, error) {
	if handle == "" {
		return "", perr.WithField(perr.PathInvalidf("empty artifact handle"), "handle")
	}
	if strings.Contains(handle, "..") ||
		filepath.IsAbs(handle) ||
		strings.HasPrefix(handle, "/") ||
		strings.ContainsAny(handle, `/\`) ||
		strings.ContainsRune(handle, filepath.Separator) ||
		strings.ContainsRune(handle, 0) {
		return "", perr.WithField(perr.PathInvalidf("artifact handle %q is not a plain name", handle), "handle")
	}

	dir := filepath.Join(s.root, handle)
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel != handle || strings.HasPrefix(rel, "..") {
		return "", perr.WithField(perr.PathInvalidf("artifact handle %q resolves outside the store", handle), "handle")
	}
	if _, err := uuid.Parse(handle); err != nil {
		return "", perr.NotFoundf("artifact %q not found", handle)
	}
	return dir, nil
}

func checkSuffix(suffix string) error {
	if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 ||
		strings.Contains(suffix, "..") || strings.ContainsAny(suffix, `/\`) {
		return perr.WithField(perr.PathInvalidf("companion suffix %q is not a plain extension", suffix), "suffix")
	}
	return nil
}
