package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/illustag/pkg/db/migrations"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/hasher"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
	// Logger replaces gorm's default logger when set; LogLevel is ignored then.
	Logger logger.Interface
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	gormLogger := cfg.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(cfg.LogLevel)
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending schema migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.Migrator().Migrate(ctx)
	return err
}

// Migrator gives access to the versioned schema history.
func (s *SQLiteStore) Migrator() *migrations.Migrator {
	return migrations.NewMigrator(s.db)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Transaction(ctx context.Context, fn func(tx MetadataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx, path: s.path})
	})
}

// Checksum operations

func (s *SQLiteStore) GetOrCreateChecksum(ctx context.Context, value string) (*models.Checksum, bool, error) {
	if !hasher.Valid(value) {
		return nil, false, fmt.Errorf("%w: '%s' is not a fingerprint", ErrInvalidInput, value)
	}

	return getOrCreate(s.db.WithContext(ctx), map[string]any{"value": value}, func() *models.Checksum {
		return &models.Checksum{Value: value}
	})
}

func (s *SQLiteStore) GetChecksum(ctx context.Context, id uint) (*models.Checksum, error) {
	var checksum models.Checksum
	err := s.db.WithContext(ctx).First(&checksum, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrChecksumNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &checksum, nil
}

func (s *SQLiteStore) GetChecksumByValue(ctx context.Context, value string) (*models.Checksum, error) {
	if !hasher.Valid(value) {
		return nil, fmt.Errorf("%w: '%s' is not a fingerprint", ErrInvalidInput, value)
	}

	var checksum models.Checksum
	err := s.db.WithContext(ctx).Where("value = ?", value).First(&checksum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: value %s", ErrChecksumNotFound, value)
	}
	if err != nil {
		return nil, err
	}
	return &checksum, nil
}

// DeleteChecksum removes a checksum together with its images, estimations and curation sets.
func (s *SQLiteStore) DeleteChecksum(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("checksum_id = ?", id).Delete(&models.ConfirmedTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("checksum_id = ?", id).Delete(&models.RejectedTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("checksum_id = ?", id).Delete(&models.Estimation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("checksum_id = ?", id).Delete(&models.Image{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Checksum{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: id %d", ErrChecksumNotFound, id)
		}
		return nil
	})
}

// Image operations

func (s *SQLiteStore) CreateImage(ctx context.Context, image *models.Image) error {
	return s.db.WithContext(ctx).Omit("Checksum").Create(image).Error
}

func (s *SQLiteStore) GetImage(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Preload("Checksum").First(&image, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrImageNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (s *SQLiteStore) ListImages(ctx context.Context, limit, offset int) ([]models.Image, error) {
	var images []models.Image
	query := s.db.WithContext(ctx).Preload("Checksum").Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&images).Error
	return images, err
}

func (s *SQLiteStore) ListChecksumImages(ctx context.Context, checksumID uint) ([]models.Image, error) {
	var images []models.Image
	err := s.db.WithContext(ctx).
		Where("checksum_id = ?", checksumID).
		Order("id ASC").
		Find(&images).Error
	return images, err
}

func (s *SQLiteStore) CountImagesByPath(ctx context.Context, path string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Image{}).Where("path = ?", path).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) DeleteImage(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Image{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrImageNotFound, id)
	}
	return nil
}

// Taxonomy operations

func (s *SQLiteStore) GetOrCreateNamespace(ctx context.Context, value string) (*models.Namespace, bool, error) {
	if value == "" {
		return nil, false, fmt.Errorf("%w: empty namespace", ErrInvalidInput)
	}

	return getOrCreate(s.db.WithContext(ctx), map[string]any{"value": value}, func() *models.Namespace {
		return &models.Namespace{Value: value}
	})
}

// GetOrCreateTag resolves the namespace first, then the tag keyed on (value, namespace).
// An empty namespace yields a tag without namespace, which is distinct from any namespaced tag.
func (s *SQLiteStore) GetOrCreateTag(ctx context.Context, value, namespace string) (*models.Tag, bool, error) {
	if value == "" {
		return nil, false, fmt.Errorf("%w: empty tag value", ErrInvalidInput)
	}

	namespaceID := models.NoNamespace
	if namespace != "" {
		ns, _, err := s.GetOrCreateNamespace(ctx, namespace)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve namespace '%s': %w", namespace, err)
		}
		namespaceID = ns.ID
	}

	match := map[string]any{"value": value, "namespace_id": namespaceID}
	tag, created, err := getOrCreate(s.db.WithContext(ctx), match, func() *models.Tag {
		return &models.Tag{Value: value, NamespaceID: namespaceID}
	})
	if err != nil {
		return nil, false, err
	}

	tag.Namespace = namespace
	return tag, created, nil
}

func (s *SQLiteStore) tagQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.*, COALESCE(namespaces.value, '') AS namespace").
		Joins("LEFT JOIN namespaces ON namespaces.id = tags.namespace_id")
}

func (s *SQLiteStore) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	err := s.tagQuery(ctx).Where("tags.id = ?", id).Take(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrTagNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (s *SQLiteStore) ListTags(ctx context.Context, namespace string, limit, offset int) ([]models.Tag, error) {
	var tags []models.Tag
	query := s.tagQuery(ctx).Order("namespace ASC, tags.value ASC")

	if namespace != "" {
		query = query.Where("namespaces.value = ?", namespace)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&tags).Error
	return tags, err
}

// Estimation operations

// UpsertEstimation writes value for (checksumID, tagID, mode), updating the
// existing row in place instead of inserting a duplicate.
func (s *SQLiteStore) UpsertEstimation(ctx context.Context, checksumID, tagID uint, mode models.Mode, value float64) error {
	estimation := &models.Estimation{
		ChecksumID: checksumID,
		TagID:      tagID,
		Mode:       mode,
		Value:      value,
	}

	return s.db.WithContext(ctx).
		Omit("Tag").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "checksum_id"}, {Name: "tag_id"}, {Name: "mode"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(estimation).Error
}

func (s *SQLiteStore) estimationQuery(ctx context.Context, checksumID uint) *gorm.DB {
	return s.db.WithContext(ctx).Table("estimations").
		Select("estimations.checksum_id, estimations.tag_id, estimations.mode, estimations.value, " +
			"tags.value AS tag_value, COALESCE(namespaces.value, '') AS namespace").
		Joins("JOIN tags ON tags.id = estimations.tag_id").
		Joins("LEFT JOIN namespaces ON namespaces.id = tags.namespace_id").
		Where("estimations.checksum_id = ?", checksumID)
}

func (s *SQLiteStore) ListEstimations(ctx context.Context, checksumID uint, mode models.Mode) ([]EstimationRow, error) {
	var rows []EstimationRow
	err := s.estimationQuery(ctx, checksumID).
		Where("estimations.mode = ?", mode).
		Order("estimations.value DESC, namespace ASC, tags.value ASC").
		Scan(&rows).Error
	return rows, err
}

func (s *SQLiteStore) ListChecksumEstimations(ctx context.Context, checksumID uint) ([]EstimationRow, error) {
	var rows []EstimationRow
	err := s.estimationQuery(ctx, checksumID).
		Order("estimations.mode ASC, estimations.value DESC, tags.value ASC").
		Scan(&rows).Error
	return rows, err
}

func (s *SQLiteStore) CountEstimations(ctx context.Context, checksumID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Estimation{}).
		Where("checksum_id = ?", checksumID).
		Count(&count).Error
	return count, err
}

// Curation operations

func (s *SQLiteStore) AddConfirmedTag(ctx context.Context, checksumID, tagID uint) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ConfirmedTag{ChecksumID: checksumID, TagID: tagID}).Error
}

func (s *SQLiteStore) RemoveConfirmedTag(ctx context.Context, checksumID, tagID uint) error {
	return s.db.WithContext(ctx).
		Where("checksum_id = ? AND tag_id = ?", checksumID, tagID).
		Delete(&models.ConfirmedTag{}).Error
}

func (s *SQLiteStore) AddRejectedTag(ctx context.Context, checksumID, tagID uint) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RejectedTag{ChecksumID: checksumID, TagID: tagID}).Error
}

func (s *SQLiteStore) RemoveRejectedTag(ctx context.Context, checksumID, tagID uint) error {
	return s.db.WithContext(ctx).
		Where("checksum_id = ? AND tag_id = ?", checksumID, tagID).
		Delete(&models.RejectedTag{}).Error
}

func (s *SQLiteStore) GetCuration(ctx context.Context, checksumID uint) (*Curation, error) {
	var confirmed []models.ConfirmedTag
	if err := s.db.WithContext(ctx).Where("checksum_id = ?", checksumID).Find(&confirmed).Error; err != nil {
		return nil, err
	}

	var rejected []models.RejectedTag
	if err := s.db.WithContext(ctx).Where("checksum_id = ?", checksumID).Find(&rejected).Error; err != nil {
		return nil, err
	}

	curation := &Curation{
		Confirmed: make(map[uint]struct{}, len(confirmed)),
		Rejected:  make(map[uint]struct{}, len(rejected)),
	}
	for _, c := range confirmed {
		curation.Confirmed[c.TagID] = struct{}{}
	}
	for _, r := range rejected {
		curation.Rejected[r.TagID] = struct{}{}
	}

	return curation, nil
}
