// Package library places uploaded illustrations on disk under their content
// fingerprint and keeps the image and checksum rows in sync with the files.
package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/mwantia/illustag/internal/keylock"
	"github.com/mwantia/illustag/internal/metrics"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/hasher"
	"github.com/mwantia/illustag/pkg/log"
)

const (
	stagingDir = ".staging"

	// Content never changes under a fingerprint, so decoded images only
	// expire to bound memory.
	decodeTTL     = 2 * time.Minute
	decodeCleanup = 5 * time.Minute
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("upload exceeds maximum size")
)

var extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

type Config struct {
	Path          string
	MaxUploadSize int64
}

type Library struct {
	root    string
	maxSize int64
	store   store.MetadataStore
	locks   *keylock.Locker
	decoded *cache.Cache
	metrics *metrics.LibraryMetrics
	log     log.LoggerService
}

// Upload is the result of adding a file.
type Upload struct {
	Image     *models.Image
	Checksum  *models.Checksum
	Duplicate bool
}

// New creates a library rooted at cfg.Path. m may be nil.
func New(cfg Config, st store.MetadataStore, m *metrics.LibraryMetrics, logger log.LoggerService) (*Library, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(filepath.Join(cfg.Path, stagingDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &Library{
		root:    cfg.Path,
		maxSize: cfg.MaxUploadSize,
		store:   st,
		locks:   keylock.New(),
		decoded: cache.New(decodeTTL, decodeCleanup),
		metrics: m,
		log:     logger.Named("library"),
	}, nil
}

// Add stores the content of r as fingerprint + extension of name. Uploading
// the same bytes again creates another image row for the same checksum.
func (l *Library) Add(ctx context.Context, name string, r io.Reader) (*Upload, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !extensions[ext] {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, ext)
	}

	staged, fingerprint, size, err := l.stage(r, ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(staged)

	if err := checkDecodable(staged); err != nil {
		return nil, err
	}

	// Delete takes the same key, so the checksum and the file cannot be
	// removed between placing the bytes and committing the rows.
	l.locks.Lock(fingerprint)
	defer l.locks.Unlock(fingerprint)

	path := fingerprint + ext
	placed, err := l.place(staged, path)
	if err != nil {
		return nil, err
	}

	var (
		checksum *models.Checksum
		created  bool
		img      = &models.Image{
			Path:         path,
			OriginalName: filepath.Base(name),
			Size:         size,
		}
	)
	err = l.store.Transaction(ctx, func(tx store.MetadataStore) error {
		var err error
		checksum, created, err = tx.GetOrCreateChecksum(ctx, fingerprint)
		if err != nil {
			return fmt.Errorf("failed to resolve checksum: %w", err)
		}

		img.ChecksumID = checksum.ID
		if err := tx.CreateImage(ctx, img); err != nil {
			return fmt.Errorf("failed to create image: %w", err)
		}
		return nil
	})
	if err != nil {
		l.discard(ctx, path, placed)
		return nil, err
	}
	img.Checksum = checksum

	// Another process may have removed the shared file before the commit.
	if !placed {
		if _, err := l.place(staged, path); err != nil {
			l.log.Warn("Unable to restore %s: %v", path, err)
		}
	}

	l.metrics.ObserveUpload(size, !created)
	l.log.Info("Stored '%s' as %s (checksum %s, duplicate: %t)", img.OriginalName, path, checksum.ShortValue(), !created)

	return &Upload{Image: img, Checksum: checksum, Duplicate: !created}, nil
}

// stage copies r into a temporary file while fingerprinting it.
func (l *Library) stage(r io.Reader, ext string) (string, string, int64, error) {
	staged := filepath.Join(l.root, stagingDir, uuid.NewString()+ext)
	f, err := os.Create(staged)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create staging file: %w", err)
	}

	src := r
	if l.maxSize > 0 {
		src = io.LimitReader(r, l.maxSize+1)
	}

	fingerprint, err := hasher.Copy(f, src)
	if err == nil {
		err = f.Sync()
	}
	var size int64
	if err == nil {
		var info os.FileInfo
		if info, err = f.Stat(); err == nil {
			size = info.Size()
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(staged)
		return "", "", 0, fmt.Errorf("failed to stage upload: %w", err)
	}
	if l.maxSize > 0 && size > l.maxSize {
		os.Remove(staged)
		return "", "", 0, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, l.maxSize)
	}
	if size == 0 {
		os.Remove(staged)
		return "", "", 0, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
	}

	return staged, fingerprint, size, nil
}

// place moves the staged file to its final name and reports whether it was
// moved. Identical bytes already stored under that name are kept.
func (l *Library) place(staged, path string) (bool, error) {
	dst := l.filePath(path)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	if err := os.Rename(staged, dst); err != nil {
		return false, fmt.Errorf("failed to place upload: %w", err)
	}
	return true, nil
}

// discard removes a freshly placed file that no image row references.
func (l *Library) discard(ctx context.Context, path string, placed bool) {
	if !placed {
		return
	}
	if refs, err := l.store.CountImagesByPath(ctx, path); err == nil && refs == 0 {
		os.Remove(l.filePath(path))
	}
}

func (l *Library) Get(ctx context.Context, id uint) (*models.Image, error) {
	return l.store.GetImage(ctx, id)
}

func (l *Library) List(ctx context.Context, limit, offset int) ([]models.Image, error) {
	return l.store.ListImages(ctx, limit, offset)
}

// Open returns the stored bytes of the image.
func (l *Library) Open(ctx context.Context, id uint) (*os.File, *models.Image, error) {
	img, err := l.store.GetImage(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(l.filePath(img.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", img.Path, err)
	}
	return f, img, nil
}

// Delete removes the image row. The file is removed once no row references
// its path anymore, and the checksum with all its estimations and verdicts
// goes with its last image. File removal errors are ignored.
func (l *Library) Delete(ctx context.Context, id uint) error {
	img, err := l.store.GetImage(ctx, id)
	if err != nil {
		return err
	}

	// Paths are fingerprint + extension, so this is the key Add locks on.
	fingerprint := strings.TrimSuffix(img.Path, filepath.Ext(img.Path))
	l.locks.Lock(fingerprint)
	defer l.locks.Unlock(fingerprint)

	var (
		refs    int64
		dropped bool
	)
	err = l.store.Transaction(ctx, func(tx store.MetadataStore) error {
		if err := tx.DeleteImage(ctx, id); err != nil {
			return err
		}

		remaining, err := tx.ListChecksumImages(ctx, img.ChecksumID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := tx.DeleteChecksum(ctx, img.ChecksumID); err != nil {
				return err
			}
			dropped = true
		}

		refs, err = tx.CountImagesByPath(ctx, img.Path)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %d: %w", id, err)
	}

	if refs == 0 {
		if err := os.Remove(l.filePath(img.Path)); err != nil {
			l.log.Debug("Unable to remove %s: %v", img.Path, err)
		}
	}
	if dropped && img.Checksum != nil {
		l.decoded.Delete(img.Checksum.Value)
		l.log.Info("Removed checksum %s with its last image", img.Checksum.ShortValue())
	}

	l.metrics.IncrementDeletes()
	return nil
}

// Load decodes the first readable image stored for checksum.
func (l *Library) Load(ctx context.Context, checksum *models.Checksum) (image.Image, error) {
	if cached, ok := l.decoded.Get(checksum.Value); ok {
		return cached.(image.Image), nil
	}

	images, err := l.store.ListChecksumImages(ctx, checksum.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	for _, img := range images {
		decoded, err := decodeFile(l.filePath(img.Path))
		if err != nil {
			l.log.Warn("Unable to decode %s: %v", img.Path, err)
			continue
		}

		l.decoded.Set(checksum.Value, decoded, cache.DefaultExpiration)
		return decoded, nil
	}

	return nil, fmt.Errorf("%w: no readable file for checksum %s", store.ErrImageNotFound, checksum.ShortValue())
}

func (l *Library) filePath(path string) string {
	return filepath.Join(l.root, filepath.Base(path))
}

func checkDecodable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
