// Package curation records curator verdicts on estimated tags.
//
// Verdicts are kept per checksum and never touch the estimation rows; a tag
// can be judged whether or not it was ever estimated for that content.
package curation

import (
	"context"
	"fmt"

	"github.com/mwantia/illustag/internal/estimation"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/db/store"
	"github.com/mwantia/illustag/pkg/log"
)

type Ledger struct {
	store store.MetadataStore
	log   log.LoggerService
}

func NewLedger(st store.MetadataStore, logger log.LoggerService) *Ledger {
	return &Ledger{
		store: st,
		log:   logger.Named("curation"),
	}
}

// Classify returns the verdict for tagID on checksumID. Confirmation takes
// precedence when a tag was placed in both sets.
func (l *Ledger) Classify(ctx context.Context, checksumID, tagID uint) (models.Status, error) {
	if err := l.exists(ctx, l.store, checksumID, tagID); err != nil {
		return "", err
	}

	curation, err := l.store.GetCuration(ctx, checksumID)
	if err != nil {
		return "", fmt.Errorf("failed to read curation: %w", err)
	}
	return curation.Status(tagID), nil
}

// Confirm marks the tag as valid and drops a previous rejection.
// Confirming twice is a no-op.
func (l *Ledger) Confirm(ctx context.Context, checksumID, tagID uint) error {
	return l.apply(ctx, "confirm", checksumID, tagID, func(tx store.MetadataStore) error {
		if err := tx.RemoveRejectedTag(ctx, checksumID, tagID); err != nil {
			return err
		}
		return tx.AddConfirmedTag(ctx, checksumID, tagID)
	})
}

// Reject marks the tag as invalid and drops a previous confirmation.
// Rejecting twice is a no-op.
func (l *Ledger) Reject(ctx context.Context, checksumID, tagID uint) error {
	return l.apply(ctx, "reject", checksumID, tagID, func(tx store.MetadataStore) error {
		if err := tx.RemoveConfirmedTag(ctx, checksumID, tagID); err != nil {
			return err
		}
		return tx.AddRejectedTag(ctx, checksumID, tagID)
	})
}

func (l *Ledger) Unconfirm(ctx context.Context, checksumID, tagID uint) error {
	return l.apply(ctx, "unconfirm", checksumID, tagID, func(tx store.MetadataStore) error {
		return tx.RemoveConfirmedTag(ctx, checksumID, tagID)
	})
}

func (l *Ledger) Unreject(ctx context.Context, checksumID, tagID uint) error {
	return l.apply(ctx, "unreject", checksumID, tagID, func(tx store.MetadataStore) error {
		return tx.RemoveRejectedTag(ctx, checksumID, tagID)
	})
}

// Overlay sets the status of every entry in est from a single curation read.
func (l *Ledger) Overlay(ctx context.Context, checksumID uint, est estimation.Estimations) error {
	curation, err := l.store.GetCuration(ctx, checksumID)
	if err != nil {
		return fmt.Errorf("failed to read curation: %w", err)
	}

	for category, entries := range est {
		for i := range entries {
			entries[i].Status = curation.Status(entries[i].TagID)
		}
		est[category] = entries
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, action string, checksumID, tagID uint, fn func(tx store.MetadataStore) error) error {
	err := l.store.Transaction(ctx, func(tx store.MetadataStore) error {
		if err := l.exists(ctx, tx, checksumID, tagID); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		return fmt.Errorf("failed to %s tag %d on checksum %d: %w", action, tagID, checksumID, err)
	}

	l.log.Debug("Applied %s for tag %d on checksum %d", action, tagID, checksumID)
	return nil
}

func (l *Ledger) exists(ctx context.Context, st store.MetadataStore, checksumID, tagID uint) error {
	if _, err := st.GetChecksum(ctx, checksumID); err != nil {
		return err
	}
	if _, err := st.GetTag(ctx, tagID); err != nil {
		return err
	}
	return nil
}
