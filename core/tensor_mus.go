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
	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// TensorMUS is the MUS serializer for Tensor blobs. Each sub-vector is a
// varint length followed by raw little-endian float64 values. Lengths are
// checked against the remaining input before anything is allocated.
var TensorMUS = tensorMUS{}

type tensorMUS struct{}

func (s tensorMUS) Marshal(v Tensor, bs []byte) (n int) {
	n = marshalFloat64s(v.Context, bs)
	n += marshalFloat64s(v.Biology, bs[n:])
	return n + marshalFloat64s(v.Behavior, bs[n:])
}

func (s tensorMUS) Unmarshal(bs []byte) (v Tensor, n int, err error) {
	v.Context, n, err = unmarshalFloat64s(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Biology, n1, err = unmarshalFloat64s(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Behavior, n1, err = unmarshalFloat64s(bs[n:])
	n += n1
	return
}

func (s tensorMUS) Size(v Tensor) (size int) {
	return sizeFloat64s(v.Context) + sizeFloat64s(v.Biology) + sizeFloat64s(v.Behavior)
}

func (s tensorMUS) Skip(bs []byte) (n int, err error) {
	for range 3 {
		length, n1, err := varint.PositiveInt.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
		if length < 0 || length > (len(bs)-n)/com.Num64RawSize {
			return n, ErrTruncated
		}
		n += length * com.Num64RawSize
	}
	return
}

func marshalFloat64s(v []float64, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float64.Marshal(f, bs[n:])
	}
	return
}

func unmarshalFloat64s(bs []byte) (v []float64, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/com.Num64RawSize {
		err = ErrTruncated
		return
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float64, length)
	var n1 int
	for i := range v {
		v[i], n1, err = raw.Float64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeFloat64s(v []float64) int {
	return varint.PositiveInt.Size(len(v)) + len(v)*com.Num64RawSize
}
