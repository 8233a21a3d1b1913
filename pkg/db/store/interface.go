package store

import (
	"context"

	"github.com/mwantia/illustag/pkg/db/models"
)

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Transaction runs fn against a store bound to a single transaction.
	// The transaction is committed when fn returns nil and rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx MetadataStore) error) error

	// Checksum operations
	GetOrCreateChecksum(ctx context.Context, value string) (*models.Checksum, bool, error)
	GetChecksum(ctx context.Context, id uint) (*models.Checksum, error)
	GetChecksumByValue(ctx context.Context, value string) (*models.Checksum, error)
	DeleteChecksum(ctx context.Context, id uint) error

	// Image operations
	CreateImage(ctx context.Context, image *models.Image) error
	GetImage(ctx context.Context, id uint) (*models.Image, error)
	ListImages(ctx context.Context, limit, offset int) ([]models.Image, error)
	ListChecksumImages(ctx context.Context, checksumID uint) ([]models.Image, error)
	CountImagesByPath(ctx context.Context, path string) (int64, error)
	DeleteImage(ctx context.Context, id uint) error

	// Taxonomy operations
	GetOrCreateNamespace(ctx context.Context, value string) (*models.Namespace, bool, error)
	GetOrCreateTag(ctx context.Context, value, namespace string) (*models.Tag, bool, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
	ListTags(ctx context.Context, namespace string, limit, offset int) ([]models.Tag, error)

	// Estimation operations
	UpsertEstimation(ctx context.Context, checksumID, tagID uint, mode models.Mode, value float64) error
	ListEstimations(ctx context.Context, checksumID uint, mode models.Mode) ([]EstimationRow, error)
	ListChecksumEstimations(ctx context.Context, checksumID uint) ([]EstimationRow, error)
	CountEstimations(ctx context.Context, checksumID uint) (int64, error)

	// Curation operations
	AddConfirmedTag(ctx context.Context, checksumID, tagID uint) error
	RemoveConfirmedTag(ctx context.Context, checksumID, tagID uint) error
	AddRejectedTag(ctx context.Context, checksumID, tagID uint) error
	RemoveRejectedTag(ctx context.Context, checksumID, tagID uint) error
	GetCuration(ctx context.Context, checksumID uint) (*Curation, error)
}

// EstimationRow is an estimation joined with its tag and namespace.
type EstimationRow struct {
	ChecksumID uint
	TagID      uint
	Mode       models.Mode
	Value      float64
	TagValue   string
	Namespace  string
}

func (r EstimationRow) Fullname() string {
	return models.Fullname(r.Namespace, r.TagValue)
}

// Curation holds the confirmed and rejected tag IDs of one checksum.
type Curation struct {
	Confirmed map[uint]struct{}
	Rejected  map[uint]struct{}
}

func (c *Curation) IsConfirmed(tagID uint) bool {
	_, ok := c.Confirmed[tagID]
	return ok
}

func (c *Curation) IsRejected(tagID uint) bool {
	_, ok := c.Rejected[tagID]
	return ok
}

// Status resolves the verdict for tagID. A tag found in both sets is valid.
func (c *Curation) Status(tagID uint) models.Status {
	switch {
	case c.IsConfirmed(tagID):
		return models.StatusValid
	case c.IsRejected(tagID):
		return models.StatusInvalid
	default:
		return models.StatusUnknown
	}
}
