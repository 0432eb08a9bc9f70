// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package store

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/safetrail/safetrail/internal/logging"
)

// auditSeq disambiguates audit entries written in the same nanosecond.
var auditSeq atomic.Uint64

// AuditEntry is a single immutable record in the audit trail.
type AuditEntry struct {
	Kind      string      `json:"kind"`
	SubjectID string      `json:"subject_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppendAudit appends an entry to the audit trail. Appends are
// fire-and-forget: a failure is logged but never propagated, so audit
// problems cannot block event processing.
func (s *Store) AppendAudit(kind, subjectID string, payload interface{}) {
	entry := AuditEntry{
		Kind:      kind,
		SubjectID: subjectID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logging.Error().Err(err).Str("kind", kind).Msg("Failed to marshal audit entry")
		return
	}

	key := []byte(fmt.Sprintf("%s%020d:%d", auditKeyPrefix, entry.Timestamp.UnixNano(), auditSeq.Add(1)))
	if err := s.set(key, data); err != nil {
		logging.Error().Err(err).Str("kind", kind).Msg("Failed to append audit entry")
	}
}

// ListAudit returns up to limit audit entries, newest first.
func (s *Store) ListAudit(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(auditKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(auditKeyPrefix), 0xFF)
		for it.Seek(seek); it.Valid() && len(entries) < limit; it.Next() {
			var e AuditEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("unmarshal audit entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
