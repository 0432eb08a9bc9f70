// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/safetrail/safetrail/internal/models"
)

// alertKey orders alerts by creation time so a reverse prefix scan
// yields newest first. The alert id disambiguates same-nanosecond writes.
func alertKey(a *models.Alert) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", alertKeyPrefix, a.CreatedAt.UnixNano(), a.ID))
}

// RecordAlert persists an alert.
func (s *Store) RecordAlert(a *models.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.set(alertKey(a), data)
}

// ListAlerts returns up to limit alerts, newest first. A non-empty
// subjectID restricts the result to that subject.
func (s *Store) ListAlerts(subjectID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	var alerts []models.Alert
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(alertKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := append([]byte(alertKeyPrefix), 0xFF)
		for it.Seek(seek); it.Valid() && len(alerts) < limit; it.Next() {
			var a models.Alert
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return fmt.Errorf("unmarshal alert: %w", err)
			}
			if subjectID != "" && a.SubjectID != subjectID {
				continue
			}
			alerts = append(alerts, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
