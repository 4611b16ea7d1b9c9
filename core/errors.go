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

import "errors"

// Domain validation errors
var (
	// ErrInvalidTensorRecord indicates a TensorRecord failed validation.
	ErrInvalidTensorRecord = errors.New("invalid tensor record")

	// ErrInvalidTensorShape indicates a tensor has the wrong sub-vector lengths.
	ErrInvalidTensorShape = errors.New("invalid tensor shape")

	// ErrInvalidTensorBlob indicates a blob could not be decoded as a tensor.
	ErrInvalidTensorBlob = errors.New("invalid tensor blob")

	// ErrEmptyID indicates a required identifier is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidID indicates an identifier contains a reserved byte.
	ErrInvalidID = errors.New("id contains reserved characters")

	// ErrEmptyBlob indicates a record has no tensor data.
	ErrEmptyBlob = errors.New("tensor blob cannot be empty")

	// ErrInvalidMaturity indicates maturity is outside [0, 1].
	ErrInvalidMaturity = errors.New("maturity must be between 0 and 1")

	// ErrInvalidTrainingCycles indicates a negative cycle count.
	ErrInvalidTrainingCycles = errors.New("training cycles cannot be negative")

	// ErrInvalidAction indicates an unrecognized access action.
	ErrInvalidAction = errors.New("invalid action")

	// ErrTruncated indicates an encoded value ended early.
	ErrTruncated = errors.New("truncated data")

	// ErrTooLong indicates an encoded collection exceeds its length limit.
	ErrTooLong = errors.New("collection too long")

	// ErrInvalidAccessLevel indicates an unrecognized access level.
	ErrInvalidAccessLevel = errors.New("invalid access level")
)
