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
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

// digestSize is the BLAKE2b output length in bytes; the hex form is twice that.
const digestSize = 8

// EncodeTensor serializes a tensor into its compact binary blob.
// Each sub-vector is written as a varint length followed by raw
// little-endian float64 values, so decoding is bit-exact.
func EncodeTensor(t *Tensor) ([]byte, error) {
	if err := ValidateTensor(t); err != nil {
		return nil, err
	}
	buf := make([]byte, TensorMUS.Size(*t))
	TensorMUS.Marshal(*t, buf)
	return buf, nil
}

// MustEncodeTensor is EncodeTensor for tensors known to be well formed,
// such as those built by NewTensor or DefaultTensor.
func MustEncodeTensor(t *Tensor) []byte {
	blob, err := EncodeTensor(t)
	if err != nil {
		panic(err)
	}
	return blob
}

// DecodeTensor parses a blob produced by EncodeTensor.
func DecodeTensor(blob []byte) (*Tensor, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrInvalidTensorBlob)
	}
	t, n, err := TensorMUS.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTensorBlob, err)
	}
	if n != len(blob) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidTensorBlob, len(blob)-n)
	}
	if err := ValidateTensor(&t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTensorBlob, err)
	}
	return &t, nil
}

// TensorDigest returns a stable 16 character hex digest of a blob for
// deduplication and change detection.
func TensorDigest(blob []byte) string {
	h, _ := blake2b.New(digestSize, nil)
	h.Write(blob)
	return hex.EncodeToString(h.Sum(nil))
}
