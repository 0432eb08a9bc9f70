// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/safetrail/safetrail/internal/models"
)

// DefaultSafetyScore is the score assigned to a subject on first contact.
// Scores are clamped to [0, 100]; anomalies and violations subtract,
// uneventful updates slowly restore.
const DefaultSafetyScore = 100.0

// Profile is the persisted per-subject state.
type Profile struct {
	SubjectID   string        `json:"subject_id"`
	LastKnown   models.LatLng `json:"last_known"`
	LastUpdate  time.Time     `json:"last_update"`
	SafetyScore float64       `json:"safety_score"`
}

func profileKey(subjectID string) []byte {
	return []byte(profileKeyPrefix + subjectID)
}

// GetProfile returns the persisted profile for a subject, or ErrNotFound.
func (s *Store) GetProfile(subjectID string) (*Profile, error) {
	data, err := s.get(profileKey(subjectID))
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// UpsertLocation records the event as the subject's last known position
// and returns the previous update timestamp, if any. The previous
// timestamp feeds the inactivity feature of the next assessment.
func (s *Store) UpsertLocation(event *models.LocationEvent) (*time.Time, error) {
	var prev *time.Time

	err := s.db.Update(func(txn *badger.Txn) error {
		key := profileKey(event.SubjectID)

		p := Profile{SubjectID: event.SubjectID, SafetyScore: DefaultSafetyScore}
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			// first contact
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("unmarshal profile: %w", err)
			}
			t := p.LastUpdate
			prev = &t
		}

		p.LastKnown = event.Location()
		p.LastUpdate = event.Timestamp

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// AdjustSafetyScore applies a delta to the subject's safety score,
// clamped to [0, 100], and returns the new value. Unknown subjects start
// from the default score.
func (s *Store) AdjustSafetyScore(subjectID string, delta float64) (float64, error) {
	var score float64

	err := s.db.Update(func(txn *badger.Txn) error {
		key := profileKey(subjectID)

		p := Profile{SubjectID: subjectID, SafetyScore: DefaultSafetyScore}
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("unmarshal profile: %w", err)
			}
		}

		p.SafetyScore += delta
		if p.SafetyScore < 0 {
			p.SafetyScore = 0
		}
		if p.SafetyScore > 100 {
			p.SafetyScore = 100
		}
		score = p.SafetyScore

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}
