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


package storage

import (
	"fmt"
	"time"

	"github.com/poiesic/tensorvault/core"
)

// MarshalTensorRecord serializes a TensorRecord to bytes.
func MarshalTensorRecord(record *core.TensorRecord) []byte {
	buf := make([]byte, core.TensorRecordMUS.Size(*record))
	core.TensorRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalTensorRecord deserializes a TensorRecord from bytes.
func UnmarshalTensorRecord(data []byte) (*core.TensorRecord, error) {
	record, _, err := core.TensorRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tensor record: %w", ErrSerializationFailed, err)
	}
	record.Embedding = nilIfEmpty(record.Embedding)
	record.CreatedAt = utc(record.CreatedAt)
	record.UpdatedAt = utc(record.UpdatedAt)
	return &record, nil
}

// MarshalTensorVersion serializes a TensorVersion to bytes.
func MarshalTensorVersion(version *core.TensorVersion) []byte {
	buf := make([]byte, core.TensorVersionMUS.Size(*version))
	core.TensorVersionMUS.Marshal(*version, buf)
	return buf
}

// UnmarshalTensorVersion deserializes a TensorVersion from bytes.
func UnmarshalTensorVersion(data []byte) (*core.TensorVersion, error) {
	version, _, err := core.TensorVersionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tensor version: %w", ErrSerializationFailed, err)
	}
	version.CreatedAt = utc(version.CreatedAt)
	return &version, nil
}

// MarshalTrainingJob serializes a TrainingJob to bytes.
func MarshalTrainingJob(job *core.TrainingJob) []byte {
	buf := make([]byte, core.TrainingJobMUS.Size(*job))
	core.TrainingJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalTrainingJob deserializes a TrainingJob from bytes.
func UnmarshalTrainingJob(data []byte) (*core.TrainingJob, error) {
	job, _, err := core.TrainingJobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: training job: %w", ErrSerializationFailed, err)
	}
	job.CreatedAt = utc(job.CreatedAt)
	job.StartedAt = utc(job.StartedAt)
	job.CompletedAt = utc(job.CompletedAt)
	return &job, nil
}

// MarshalTensorPermission serializes a TensorPermission to bytes.
func MarshalTensorPermission(perm *core.TensorPermission) []byte {
	buf := make([]byte, core.TensorPermissionMUS.Size(*perm))
	core.TensorPermissionMUS.Marshal(*perm, buf)
	return buf
}

// UnmarshalTensorPermission deserializes a TensorPermission from bytes.
func UnmarshalTensorPermission(data []byte) (*core.TensorPermission, error) {
	perm, _, err := core.TensorPermissionMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tensor permission: %w", ErrSerializationFailed, err)
	}
	perm.SharedWith = nilIfEmpty(perm.SharedWith)
	perm.SharedGroups = nilIfEmpty(perm.SharedGroups)
	perm.AccessedAt = utc(perm.AccessedAt)
	perm.CreatedAt = utc(perm.CreatedAt)
	perm.ModifiedAt = utc(perm.ModifiedAt)
	return &perm, nil
}

// MarshalAuditEntry serializes an AuditEntry to bytes.
func MarshalAuditEntry(entry *core.AuditEntry) []byte {
	buf := make([]byte, core.AuditEntryMUS.Size(*entry))
	core.AuditEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalAuditEntry deserializes an AuditEntry from bytes.
func UnmarshalAuditEntry(data []byte) (*core.AuditEntry, error) {
	entry, _, err := core.AuditEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: audit entry: %w", ErrSerializationFailed, err)
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = nil
	}
	entry.Timestamp = utc(entry.Timestamp)
	return &entry, nil
}

// MarshalIndexSnapshot serializes an IndexSnapshot to bytes.
func MarshalIndexSnapshot(snapshot *core.IndexSnapshot) []byte {
	buf := make([]byte, core.IndexSnapshotMUS.Size(*snapshot))
	core.IndexSnapshotMUS.Marshal(*snapshot, buf)
	return buf
}

// UnmarshalIndexSnapshot deserializes an IndexSnapshot from bytes.
func UnmarshalIndexSnapshot(data []byte) (*core.IndexSnapshot, error) {
	snapshot, n, err := core.IndexSnapshotMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: index snapshot: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: index snapshot: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	if len(snapshot.Entries) == 0 {
		snapshot.Entries = nil
	}
	for i := range snapshot.Entries {
		snapshot.Entries[i].Vector = nilIfEmpty(snapshot.Entries[i].Vector)
	}
	return &snapshot, nil
}

// utc drops the local zone the decoder attaches, keeping the zero time zero.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
