// Package snapshot backs the SQLite database up to R2 and restores it on
// a fresh host. Uploads go to a unique temporary key first and are then
// copied over the snapshot key, so readers never see a partial object.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/garyellow/lullabot-go/internal/maintenance"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/r2client"
)

// ErrNotFound indicates no snapshot exists in the bucket.
var ErrNotFound = errors.New("snapshot: not found")

// ObjectStore is the part of *r2client.Client the manager uses.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	CopyObject(ctx context.Context, src, dst string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// StateStore records what was last uploaded. *maintenance.R2StateStore
// implements it.
type StateStore interface {
	Load(ctx context.Context) (maintenance.State, bool, error)
	Update(ctx context.Context, updater func(*maintenance.State)) error
}

// Source produces a consistent copy of the live database.
type Source interface {
	Backup(ctx context.Context, dest string) error
}

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string // e.g. "snapshots/lullabot.db.zst"
	TempDir     string
}

// Result describes one Upload call.
type Result struct {
	Skipped bool // database unchanged since the last upload
	ETag    string
	Digest  string
	Bytes   int64 // compressed size
}

// Manager uploads and restores snapshots.
type Manager struct {
	store   ObjectStore
	state   StateStore
	config  Config
	metrics *metrics.Metrics
}

// New creates a new snapshot manager. state may be nil, in which case
// every upload is performed.
func New(store ObjectStore, state StateStore, cfg Config, m *metrics.Metrics) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{store: store, state: state, config: cfg, metrics: m}
}

// Upload backs src up, compresses it and replaces the snapshot object.
// Nothing is uploaded when the backup matches the last recorded digest.
func (m *Manager) Upload(ctx context.Context, src Source) (Result, error) {
	start := time.Now()
	res, err := m.upload(ctx, src)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case res.Skipped:
		status = "skipped"
	}
	m.metrics.RecordSnapshot("upload", status, time.Since(start).Seconds())
	return res, err
}

func (m *Manager) upload(ctx context.Context, src Source) (Result, error) {
	id := uuid.NewString()
	backupPath := filepath.Join(m.config.TempDir, "lullabot-backup-"+id+".db")
	if err := src.Backup(ctx, backupPath); err != nil {
		return Result{}, fmt.Errorf("back up database: %w", err)
	}
	defer os.Remove(backupPath)

	digest, err := fileDigest(backupPath)
	if err != nil {
		return Result{}, err
	}

	if m.state != nil {
		state, found, err := m.state.Load(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Snapshot state unavailable; uploading anyway", "error", err)
		} else if found && state.Digest == digest {
			return Result{Skipped: true, ETag: state.ETag, Digest: digest}, nil
		}
	}

	compressedPath := backupPath + ".zst"
	size, err := CompressFile(backupPath, compressedPath)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(compressedPath)

	f, err := os.Open(compressedPath)
	if err != nil {
		return Result{}, fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()

	tempKey := m.config.SnapshotKey + ".upload-" + id
	if _, err := m.store.Upload(ctx, tempKey, f, "application/zstd"); err != nil {
		return Result{}, fmt.Errorf("upload snapshot: %w", err)
	}
	etag, copyErr := m.store.CopyObject(ctx, tempKey, m.config.SnapshotKey)
	if err := m.store.DeleteObject(context.WithoutCancel(ctx), tempKey); err != nil {
		slog.WarnContext(ctx, "Failed to delete temporary snapshot object", "key", tempKey, "error", err)
	}
	if copyErr != nil {
		return Result{}, fmt.Errorf("publish snapshot: %w", copyErr)
	}

	res := Result{ETag: etag, Digest: digest, Bytes: size}
	if m.state != nil {
		err := m.state.Update(ctx, func(s *maintenance.State) {
			s.Digest = digest
			s.ETag = etag
			s.Bytes = size
			s.PublishedAt = time.Now().UTC().Unix()
		})
		if err != nil {
			// The snapshot itself is in place; the next run uploads again.
			slog.WarnContext(ctx, "Failed to record snapshot state", "error", err)
		}
	}
	return res, nil
}

// Restore downloads the snapshot into dbPath when no database exists there
// yet. It returns false without touching anything when dbPath exists, and
// ErrNotFound when the bucket holds no snapshot.
func (m *Manager) Restore(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat database: %w", err)
	}

	start := time.Now()
	restored, err := m.restore(ctx, dbPath)

	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	m.metrics.RecordSnapshot("restore", status, time.Since(start).Seconds())
	return restored, err
}

func (m *Manager) restore(ctx context.Context, dbPath string) (bool, error) {
	body, _, err := m.store.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return false, fmt.Errorf("create data directory: %w", err)
	}

	partial := dbPath + ".restore-" + uuid.NewString()
	if err := DecompressStream(body, partial); err != nil {
		os.Remove(partial)
		return false, err
	}
	if err := os.Rename(partial, dbPath); err != nil {
		os.Remove(partial)
		return false, fmt.Errorf("move restored database: %w", err)
	}
	return true, nil
}

// CompressFile writes a zstd-compressed copy of srcPath to dstPath and
// returns the compressed size.
func CompressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("compress: open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("compress: create dest: %w", err)
	}
	defer dst.Close()

	encoder, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("compress: create encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		_ = encoder.Close()
		return 0, fmt.Errorf("compress: copy: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return 0, fmt.Errorf("compress: close encoder: %w", err)
	}

	info, err := dst.Stat()
	if err != nil {
		return 0, fmt.Errorf("compress: stat dest: %w", err)
	}
	return info.Size(), nil
}

// DecompressStream writes the zstd stream r to dstPath.
func DecompressStream(r io.Reader, dstPath string) error {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer decoder.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("decompress: create dest: %w", err)
	}

	if _, err := io.Copy(dst, decoder); err != nil {
		_ = dst.Close()
		return fmt.Errorf("decompress: copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("decompress: close dest: %w", err)
	}
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest: open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest: read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
