package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mwantia/illustag/internal/testutil"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
)

const fingerprint = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestGetOrCreateChecksum(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	first, created, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	second, created, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, st.DB().Model(&models.Checksum{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	for _, value := range []string{"", "abc", strings.ToUpper(fingerprint), fingerprint + "0"} {
		_, _, err = st.GetOrCreateChecksum(ctx, value)
		assert.ErrorIs(t, err, store.ErrInvalidInput, value)
	}
}

// A writer in another process inserts the same key between our lookup and our
// insert. The insert must yield to it and hand back its row.
func TestGetOrCreate_ConflictReadsBackWinner(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "illustag.db")
	ours := testutil.OpenStore(t, path)
	theirs := testutil.OpenStore(t, path)

	var (
		once    sync.Once
		winner  *models.Tag
		raceErr error
	)
	err := ours.DB().Callback().Create().Before("gorm:begin_transaction").Register("test:concurrent_writer", func(tx *gorm.DB) {
		if tx.Statement.Table != "tags" {
			return
		}
		once.Do(func() {
			winner, _, raceErr = theirs.GetOrCreateTag(ctx, "cat", "general")
		})
	})
	require.NoError(t, err)

	tag, created, err := ours.GetOrCreateTag(ctx, "cat", "general")
	require.NoError(t, err)
	require.NoError(t, raceErr)
	require.NotNil(t, winner)

	assert.False(t, created)
	assert.Equal(t, winner.ID, tag.ID)
	assert.Equal(t, winner.NamespaceID, tag.NamespaceID)

	var count int64
	require.NoError(t, ours.DB().Model(&models.Tag{}).Where("value = ?", "cat").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateChecksum_Concurrent(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	const workers = 8
	ids := make([]uint, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
			errs[i] = err
			if err == nil {
				ids[i] = checksum.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	_, err := st.GetChecksum(ctx, 42)
	assert.ErrorIs(t, err, store.ErrChecksumNotFound)
	assert.True(t, store.IsNotFound(err))

	_, err = st.GetChecksumByValue(ctx, fingerprint)
	assert.ErrorIs(t, err, store.ErrChecksumNotFound)

	_, err = st.GetChecksumByValue(ctx, "not-a-fingerprint")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	created, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)
	found, err := st.GetChecksumByValue(ctx, fingerprint)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestGetOrCreateTag_NamespaceIdentity(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	general, created, err := st.GetOrCreateTag(ctx, "solo", "general")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "general:solo", general.Fullname())

	again, created, err := st.GetOrCreateTag(ctx, "solo", "general")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, general.ID, again.ID)

	bare, created, err := st.GetOrCreateTag(ctx, "solo", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, general.ID, bare.ID)
	assert.Equal(t, "solo", bare.Fullname())

	bareAgain, _, err := st.GetOrCreateTag(ctx, "solo", "")
	require.NoError(t, err)
	assert.Equal(t, bare.ID, bareAgain.ID)

	other, _, err := st.GetOrCreateTag(ctx, "solo", "character")
	require.NoError(t, err)
	assert.NotEqual(t, general.ID, other.ID)

	var namespaces int64
	require.NoError(t, st.DB().Model(&models.Namespace{}).Count(&namespaces).Error)
	assert.Equal(t, int64(2), namespaces)

	_, _, err = st.GetOrCreateTag(ctx, "", "general")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestGetTagAndListTags(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	safe, _, err := st.GetOrCreateTag(ctx, "safe", "rating")
	require.NoError(t, err)
	_, _, err = st.GetOrCreateTag(ctx, "blue eyes", "general")
	require.NoError(t, err)
	_, _, err = st.GetOrCreateTag(ctx, "wip", "")
	require.NoError(t, err)

	tag, err := st.GetTag(ctx, safe.ID)
	require.NoError(t, err)
	assert.Equal(t, "rating:safe", tag.Fullname())

	_, err = st.GetTag(ctx, 999)
	assert.ErrorIs(t, err, store.ErrTagNotFound)

	all, err := st.ListTags(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rating, err := st.ListTags(ctx, "rating", 0, 0)
	require.NoError(t, err)
	require.Len(t, rating, 1)
	assert.Equal(t, "rating:safe", rating[0].Fullname())
}

func TestUpsertEstimation_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)
	tag, _, err := st.GetOrCreateTag(ctx, "1girl", "general")
	require.NoError(t, err)

	require.NoError(t, st.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModePlausible, 0.5))
	require.NoError(t, st.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModePlausible, 0.97))
	require.NoError(t, st.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModeTop, 0.9))

	count, err := st.CountEstimations(ctx, checksum.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, err := st.ListEstimations(ctx, checksum.ID, models.ModePlausible)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.97, rows[0].Value, 1e-9)
	assert.Equal(t, "general:1girl", rows[0].Fullname())
	assert.Equal(t, tag.ID, rows[0].TagID)

	all, err := st.ListChecksumEstimations(ctx, checksum.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListEstimations_Ordering(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)

	scores := map[string]float64{"solo": 0.87, "long hair": 0.83, "blonde hair": 0.88}
	for value, score := range scores {
		tag, _, err := st.GetOrCreateTag(ctx, value, "general")
		require.NoError(t, err)
		require.NoError(t, st.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModeTop, score))
	}

	rows, err := st.ListEstimations(ctx, checksum.ID, models.ModeTop)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "blonde hair", rows[0].TagValue)
	assert.Equal(t, "solo", rows[1].TagValue)
	assert.Equal(t, "long hair", rows[2].TagValue)
}

func TestTransaction_RollsBack(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)

	err = st.Transaction(ctx, func(tx store.MetadataStore) error {
		for i := 0; i < 3; i++ {
			tag, _, err := tx.GetOrCreateTag(ctx, fmt.Sprintf("tag-%d", i), "general")
			if err != nil {
				return err
			}
			if err := tx.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModeAll, 0.5); err != nil {
				return err
			}
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	count, err := st.CountEstimations(ctx, checksum.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	tags, err := st.ListTags(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestCurationSets(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)
	tag, _, err := st.GetOrCreateTag(ctx, "solo", "general")
	require.NoError(t, err)

	require.NoError(t, st.AddConfirmedTag(ctx, checksum.ID, tag.ID))
	require.NoError(t, st.AddConfirmedTag(ctx, checksum.ID, tag.ID))
	require.NoError(t, st.AddRejectedTag(ctx, checksum.ID, tag.ID))

	curation, err := st.GetCuration(ctx, checksum.ID)
	require.NoError(t, err)
	assert.True(t, curation.IsConfirmed(tag.ID))
	assert.True(t, curation.IsRejected(tag.ID))
	assert.Len(t, curation.Confirmed, 1)

	require.NoError(t, st.RemoveConfirmedTag(ctx, checksum.ID, tag.ID))
	require.NoError(t, st.RemoveConfirmedTag(ctx, checksum.ID, tag.ID))
	require.NoError(t, st.RemoveRejectedTag(ctx, checksum.ID, tag.ID))

	curation, err = st.GetCuration(ctx, checksum.ID)
	require.NoError(t, err)
	assert.Empty(t, curation.Confirmed)
	assert.Empty(t, curation.Rejected)
}

func TestImagesAndDeleteChecksum(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	checksum, _, err := st.GetOrCreateChecksum(ctx, fingerprint)
	require.NoError(t, err)

	path := fingerprint + ".png"
	for _, name := range []string{"a.png", "b.png"} {
		require.NoError(t, st.CreateImage(ctx, &models.Image{
			Path:         path,
			OriginalName: name,
			Size:         3,
			ChecksumID:   checksum.ID,
		}))
	}

	count, err := st.CountImagesByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	images, err := st.ListImages(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, images, 2)
	require.NotNil(t, images[0].Checksum)
	assert.Equal(t, fingerprint, images[0].Checksum.Value)

	image, err := st.GetImage(ctx, images[0].ID)
	require.NoError(t, err)
	assert.Equal(t, checksum.ID, image.Checksum.ID)

	tag, _, err := st.GetOrCreateTag(ctx, "solo", "general")
	require.NoError(t, err)
	require.NoError(t, st.UpsertEstimation(ctx, checksum.ID, tag.ID, models.ModeTop, 0.9))
	require.NoError(t, st.AddConfirmedTag(ctx, checksum.ID, tag.ID))

	require.NoError(t, st.DeleteChecksum(ctx, checksum.ID))

	_, err = st.GetChecksum(ctx, checksum.ID)
	assert.ErrorIs(t, err, store.ErrChecksumNotFound)
	count, err = st.CountImagesByPath(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, count)
	estimations, err := st.CountEstimations(ctx, checksum.ID)
	require.NoError(t, err)
	assert.Zero(t, estimations)

	// Tags outlive the checksum.
	_, err = st.GetTag(ctx, tag.ID)
	assert.NoError(t, err)

	err = st.DeleteImage(ctx, image.ID)
	assert.ErrorIs(t, err, store.ErrImageNotFound)
}
