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

//go:generate go run ../cmd/musgen

import (
	"slices"
	"time"
)

// Tensor shape. The store treats blobs as opaque; these are the lengths
// the codec enforces.
const (
	ContextDim  = 8
	BiologyDim  = 4
	BehaviorDim = 8
	FlatDim     = ContextDim + BiologyDim + BehaviorDim
)

// OperationalMaturity is the conventional threshold at which callers treat
// a tensor as fully trained.
const OperationalMaturity = 0.95

// Tensor is a fixed-shape numeric feature vector for one entity.
type Tensor struct {
	Context  []float64
	Biology  []float64
	Behavior []float64
}

// NewTensor builds a tensor from its three sub-vectors, checking the shape.
func NewTensor(context, biology, behavior []float64) (*Tensor, error) {
	t := &Tensor{
		Context:  slices.Clone(context),
		Biology:  slices.Clone(biology),
		Behavior: slices.Clone(behavior),
	}
	if err := ValidateTensor(t); err != nil {
		return nil, err
	}
	return t, nil
}

// TensorFromFlat splits a 20-element vector into a tensor.
func TensorFromFlat(values []float64) (*Tensor, error) {
	if len(values) != FlatDim {
		return nil, ErrInvalidTensorShape
	}
	return NewTensor(
		values[:ContextDim],
		values[ContextDim:ContextDim+BiologyDim],
		values[ContextDim+BiologyDim:],
	)
}

// DefaultTensor returns a neutral tensor with every element set to 0.5.
// It is used when retrieval finds no match for an entity.
func DefaultTensor() *Tensor {
	fill := func(n int) []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = 0.5
		}
		return v
	}
	return &Tensor{
		Context:  fill(ContextDim),
		Biology:  fill(BiologyDim),
		Behavior: fill(BehaviorDim),
	}
}

// Flatten concatenates context, biology and behavior.
func (t *Tensor) Flatten() []float64 {
	out := make([]float64, 0, len(t.Context)+len(t.Biology)+len(t.Behavior))
	out = append(out, t.Context...)
	out = append(out, t.Biology...)
	return append(out, t.Behavior...)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Context:  slices.Clone(t.Context),
		Biology:  slices.Clone(t.Biology),
		Behavior: slices.Clone(t.Behavior),
	}
}

// TensorRecord is the current persisted state of a tensor.
type TensorRecord struct {
	ID             string
	EntityID       string
	WorldID        string // Optional grouping key; empty means none
	Blob           []byte // Encoded tensor, opaque to the store
	Maturity       float64
	TrainingCycles int64
	Version        int64
	Description    string    // Natural language description used for retrieval
	Category       string    // Optional category path, e.g. "character/noble"
	Embedding      []float32 // Cached description embedding (populated by retrieval)
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOperational reports whether the record has reached OperationalMaturity.
func (r *TensorRecord) IsOperational() bool {
	return r.Maturity >= OperationalMaturity
}

// Clone returns a deep copy of the record.
func (r *TensorRecord) Clone() *TensorRecord {
	c := *r
	c.Blob = slices.Clone(r.Blob)
	c.Embedding = slices.Clone(r.Embedding)
	return &c
}

// TensorVersion is an immutable snapshot appended on every save.
type TensorVersion struct {
	TensorID       string
	Version        int64
	Blob           []byte
	Maturity       float64
	TrainingCycles int64
	CreatedAt      time.Time
}

// TensorStats summarizes the tensor store.
type TensorStats struct {
	TotalTensors     int
	OperationalCount int
	TrainingCount    int
	AvgMaturity      float64
	TotalVersions    int
}

// JobStatus is the lifecycle state of a TrainingJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// TrainingJob is a unit of training work held by at most one worker.
type TrainingJob struct {
	ID              string
	TensorID        string
	Status          JobStatus
	TargetMaturity  float64
	WorkerID        string // Empty while unassigned
	CreatedAt       time.Time
	StartedAt       time.Time // Zero until acquired
	CompletedAt     time.Time // Zero until terminal
	CyclesCompleted int64
	ErrorMessage    string
}

// AccessLevel controls who besides the owner may read a tensor.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessShared  AccessLevel = "shared"
	AccessPublic  AccessLevel = "public"
)

// IsValid reports whether the level is one of the known values.
func (l AccessLevel) IsValid() bool {
	switch l {
	case AccessPrivate, AccessShared, AccessPublic:
		return true
	}
	return false
}

// Default permission settings.
const (
	DefaultRateLimit = 100 // requests per hour
)

// TensorPermission holds ownership and sharing state for one tensor.
type TensorPermission struct {
	TensorID     string
	OwnerID      string
	AccessLevel  AccessLevel
	SharedWith   []string // Sorted set of user ids
	SharedGroups []string // Sorted set of group ids
	APIEnabled   bool
	RateLimit    int
	AccessCount  int64
	AccessedAt   time.Time
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// IsSharedWith reports whether the user is in SharedWith.
func (p *TensorPermission) IsSharedWith(userID string) bool {
	_, found := slices.BinarySearch(p.SharedWith, userID)
	return found
}

// HasGroup reports whether the group is in SharedGroups.
func (p *TensorPermission) HasGroup(groupID string) bool {
	_, found := slices.BinarySearch(p.SharedGroups, groupID)
	return found
}

// HasShares reports whether any user or group share exists.
func (p *TensorPermission) HasShares() bool {
	return len(p.SharedWith) > 0 || len(p.SharedGroups) > 0
}

// Clone returns a deep copy.
func (p *TensorPermission) Clone() *TensorPermission {
	c := *p
	c.SharedWith = slices.Clone(p.SharedWith)
	c.SharedGroups = slices.Clone(p.SharedGroups)
	return &c
}

// AuditEntry is one immutable access event.
type AuditEntry struct {
	ID        string
	TensorID  string
	UserID    string
	Action    Action
	Success   bool
	Timestamp time.Time
	Metadata  map[string]string
}

// Now returns the current UTC time truncated to the microsecond precision
// used by the serialized form, so stored and in-memory timestamps compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// addToSet inserts v into the sorted set s, reporting whether it was added.
func addToSet(s []string, v string) ([]string, bool) {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s, false
	}
	return slices.Insert(s, i, v), true
}

// removeFromSet deletes v from the sorted set s, reporting whether it was present.
func removeFromSet(s []string, v string) ([]string, bool) {
	i, found := slices.BinarySearch(s, v)
	if !found {
		return s, false
	}
	return slices.Delete(s, i, i+1), true
}

// AddUser adds a user share.
func (p *TensorPermission) AddUser(userID string) bool {
	var added bool
	p.SharedWith, added = addToSet(p.SharedWith, userID)
	return added
}

// RemoveUser removes a user share.
func (p *TensorPermission) RemoveUser(userID string) bool {
	var removed bool
	p.SharedWith, removed = removeFromSet(p.SharedWith, userID)
	return removed
}

// AddGroup adds a group share.
func (p *TensorPermission) AddGroup(groupID string) bool {
	var added bool
	p.SharedGroups, added = addToSet(p.SharedGroups, groupID)
	return added
}

// RemoveGroup removes a group share.
func (p *TensorPermission) RemoveGroup(groupID string) bool {
	var removed bool
	p.SharedGroups, removed = removeFromSet(p.SharedGroups, groupID)
	return removed
}

// IndexEntry is one vector held by the embedding index.
type IndexEntry struct {
	ID     string
	Vector []float32
}

// IndexSnapshot is the persisted form of an embedding index. Entries keep
// insertion order.
type IndexSnapshot struct {
	Dimension int
	Entries   []IndexEntry
}
