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

// Upper bounds applied when decoding stored records, so corrupt data
// cannot trigger huge allocations.
const (
	MaxVectorLength   = 1 << 16
	MaxSetLength      = 1 << 16
	MaxMetadataLength = 1 << 10
	MaxIndexEntries   = 1 << 20
)

func checkLength(length, limit int) error {
	if length > limit {
		return ErrTooLong
	}
	return nil
}

// ValidateVectorLength bounds embedding and index vectors.
func ValidateVectorLength(length int) error {
	return checkLength(length, MaxVectorLength)
}

// ValidateSetLength bounds share sets.
func ValidateSetLength(length int) error {
	return checkLength(length, MaxSetLength)
}

// ValidateMetadataLength bounds audit metadata.
func ValidateMetadataLength(length int) error {
	return checkLength(length, MaxMetadataLength)
}

// ValidateIndexEntries bounds the number of entries in an index snapshot.
func ValidateIndexEntries(length int) error {
	return checkLength(length, MaxIndexEntries)
}
