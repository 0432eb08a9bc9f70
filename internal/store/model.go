// Safetrail - Tourist Safety Tracking and Alerting
// Copyright 2026 Safetrail Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/safetrail/safetrail

package store

import "errors"

// SaveModel persists the serialized risk model.
func (s *Store) SaveModel(data []byte) error {
	return s.set([]byte(modelKey), data)
}

// LoadModel returns the persisted risk model, or (nil, nil) when no
// model has been saved yet.
func (s *Store) LoadModel() ([]byte, error) {
	data, err := s.get([]byte(modelKey))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}
