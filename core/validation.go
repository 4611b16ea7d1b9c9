// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateTensorRecord validates a TensorRecord according to domain rules.
//
// Validation rules:
//   - ID and EntityID must be non-empty and free of NUL bytes
//   - Blob must not be empty
//   - Maturity must be within [0, 1]
//   - TrainingCycles must not be negative
//
// NOT validated:
//   - Blob contents (the store treats them as opaque)
//   - Version and timestamps (assigned by the store)
//   - Embedding (populated by retrieval)
func ValidateTensorRecord(record *TensorRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidTensorRecord)
	}

	if err := ValidateID(record.ID); err != nil {
		return fmt.Errorf("%w: tensor id: %w", ErrInvalidTensorRecord, err)
	}

	if err := ValidateID(record.EntityID); err != nil {
		return fmt.Errorf("%w: entity id: %w", ErrInvalidTensorRecord, err)
	}

	if len(record.Blob) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTensorRecord, ErrEmptyBlob)
	}

	if !IsValidMaturity(record.Maturity) {
		return fmt.Errorf("%w: %w: got %v", ErrInvalidTensorRecord, ErrInvalidMaturity, record.Maturity)
	}

	if record.TrainingCycles < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTensorRecord, ErrInvalidTrainingCycles)
	}

	return nil
}

// ValidateTensor checks the sub-vector lengths of a tensor.
func ValidateTensor(t *Tensor) error {
	if t == nil {
		return fmt.Errorf("%w: tensor is nil", ErrInvalidTensorShape)
	}
	if len(t.Context) != ContextDim || len(t.Biology) != BiologyDim || len(t.Behavior) != BehaviorDim {
		return fmt.Errorf("%w: got %d/%d/%d, want %d/%d/%d", ErrInvalidTensorShape,
			len(t.Context), len(t.Biology), len(t.Behavior),
			ContextDim, BiologyDim, BehaviorDim)
	}
	return nil
}

// ValidateID checks that an identifier can be used as a storage key segment.
func ValidateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if strings.IndexByte(id, 0) >= 0 {
		return ErrInvalidID
	}
	return nil
}

// IsValidMaturity reports whether m lies in [0, 1].
func IsValidMaturity(m float64) bool {
	return m >= 0 && m <= 1
}

// ParseAccessLevel converts a string to a validated AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	level := AccessLevel(strings.ToLower(s))
	if !level.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccessLevel, s)
	}
	return level, nil
}
