package core

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mus-format/mus-go/varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTensor() *Tensor {
	return &Tensor{
		Context:  []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
		Biology:  []float64{0.9, 0.8, 0.7, 0.6},
		Behavior: []float64{0.5, 0.4, 0.3, 0.2, 0.1, 0.0, 0.25, 0.75},
	}
}

func TestTensorRoundTrip(t *testing.T) {
	zeros, err := TensorFromFlat(make([]float64, FlatDim))
	require.NoError(t, err)

	extreme := sampleTensor()
	extreme.Context[0] = math.MaxFloat64
	extreme.Context[1] = -math.MaxFloat64
	extreme.Biology[0] = math.SmallestNonzeroFloat64
	extreme.Behavior[7] = -0.0

	tests := []struct {
		name   string
		tensor *Tensor
	}{
		{"sample", sampleTensor()},
		{"zeros", zeros},
		{"default", DefaultTensor()},
		{"extreme magnitudes", extreme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := EncodeTensor(tt.tensor)
			require.NoError(t, err)
			require.NotEmpty(t, blob)

			decoded, err := DecodeTensor(blob)
			require.NoError(t, err)

			for i, v := range tt.tensor.Flatten() {
				assert.Equal(t, math.Float64bits(v), math.Float64bits(decoded.Flatten()[i]), "element %d", i)
			}
		})
	}
}

func TestEncodeTensorRejectsWrongShape(t *testing.T) {
	bad := sampleTensor()
	bad.Biology = bad.Biology[:3]

	_, err := EncodeTensor(bad)
	assert.ErrorIs(t, err, ErrInvalidTensorShape)
}

func TestDecodeTensorRejectsMalformed(t *testing.T) {
	blob := MustEncodeTensor(sampleTensor())

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"truncated", blob[:len(blob)-3]},
		{"trailing bytes", append(append([]byte{}, blob...), 0x01)},
		{"wrong shape", MustEncodeTensor(sampleTensor())[:1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTensor(tt.blob)
			assert.ErrorIs(t, err, ErrInvalidTensorBlob)
		})
	}
}

func TestDecodeTensorOversizedLength(t *testing.T) {
	blob := make([]byte, varint.PositiveInt.Size(math.MaxInt32)+16)
	varint.PositiveInt.Marshal(math.MaxInt32, blob)

	_, err := DecodeTensor(blob)
	assert.ErrorIs(t, err, ErrInvalidTensorBlob)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = TensorMUS.Skip(blob)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestRecordDecodersRejectOversizedCollections(t *testing.T) {
	// Dimension, then an entry count above MaxIndexEntries.
	snapshot := make([]byte, 16)
	n := varint.Int.Marshal(2, snapshot)
	n += varint.PositiveInt.Marshal(MaxIndexEntries+1, snapshot[n:])
	_, _, err := IndexSnapshotMUS.Unmarshal(snapshot[:n])
	assert.ErrorIs(t, err, ErrTooLong)

	entry := AuditEntry{ID: "a-1", TensorID: "t-1", UserID: "bob", Action: ActionRead, Timestamp: Now()}
	buf := make([]byte, AuditEntryMUS.Size(entry))
	AuditEntryMUS.Marshal(entry, buf)
	// The trailing byte is the empty metadata length; widen it past the limit.
	buf = buf[:len(buf)-1]
	buf = append(buf, make([]byte, varint.PositiveInt.Size(MaxMetadataLength+1))...)
	varint.PositiveInt.Marshal(MaxMetadataLength+1, buf[len(buf)-varint.PositiveInt.Size(MaxMetadataLength+1):])
	_, _, err = AuditEntryMUS.Unmarshal(buf)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestRecordDecodersSurviveGarbage(t *testing.T) {
	record := TensorRecord{
		ID:        "t-1",
		EntityID:  "e-1",
		Blob:      MustEncodeTensor(sampleTensor()),
		Embedding: []float32{0.5, 0.5},
		CreatedAt: Now(),
		UpdatedAt: Now(),
	}
	buf := make([]byte, TensorRecordMUS.Size(record))
	TensorRecordMUS.Marshal(record, buf)

	for i := range buf {
		assert.NotPanics(t, func() { _, _, _ = TensorRecordMUS.Unmarshal(buf[:i]) })
		assert.NotPanics(t, func() { _, _ = DecodeTensor(buf[i:]) })
	}
	for _, junk := range [][]byte{{0xff}, {0xff, 0xff, 0xff, 0xff, 0x0f}, {0x01, 0x00}} {
		assert.NotPanics(t, func() {
			_, _, _ = TensorPermissionMUS.Unmarshal(junk)
			_, _, _ = TrainingJobMUS.Unmarshal(junk)
			_, _, _ = IndexSnapshotMUS.Unmarshal(junk)
		})
	}
}

func TestTensorDigest(t *testing.T) {
	a := MustEncodeTensor(sampleTensor())
	b := MustEncodeTensor(DefaultTensor())

	assert.Len(t, TensorDigest(a), 16)
	assert.Equal(t, TensorDigest(a), TensorDigest(append([]byte{}, a...)))
	assert.NotEqual(t, TensorDigest(a), TensorDigest(b))
}

func TestFlattenAndFromFlat(t *testing.T) {
	flat := sampleTensor().Flatten()
	require.Len(t, flat, FlatDim)

	back, err := TensorFromFlat(flat)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(sampleTensor(), back))

	_, err = TensorFromFlat(flat[:10])
	assert.ErrorIs(t, err, ErrInvalidTensorShape)
}

func TestRecordSerializersRoundTrip(t *testing.T) {
	now := Now()

	record := TensorRecord{
		ID:             "t-1",
		EntityID:       "e-1",
		WorldID:        "w-1",
		Blob:           MustEncodeTensor(sampleTensor()),
		Maturity:       0.42,
		TrainingCycles: 7,
		Version:        3,
		Description:    "a weary innkeeper",
		Category:       "character/commoner",
		Embedding:      []float32{0.5, 0.5},
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now,
	}
	buf := make([]byte, TensorRecordMUS.Size(record))
	TensorRecordMUS.Marshal(record, buf)
	gotRecord, n, err := TensorRecordMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Empty(t, cmp.Diff(record, gotRecord))

	perm := TensorPermission{
		TensorID:     "t-1",
		OwnerID:      "alice",
		AccessLevel:  AccessShared,
		SharedWith:   []string{"bob", "carol"},
		SharedGroups: []string{"guild"},
		RateLimit:    DefaultRateLimit,
		AccessCount:  2,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	buf = make([]byte, TensorPermissionMUS.Size(perm))
	TensorPermissionMUS.Marshal(perm, buf)
	gotPerm, _, err := TensorPermissionMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(perm, gotPerm))

	entry := AuditEntry{
		ID:        "a-1",
		TensorID:  "t-1",
		UserID:    "bob",
		Action:    ActionFork,
		Success:   true,
		Timestamp: now,
		Metadata:  map[string]string{"ip": "10.0.0.1", "agent": "cli"},
	}
	buf = make([]byte, AuditEntryMUS.Size(entry))
	AuditEntryMUS.Marshal(entry, buf)
	gotEntry, _, err := AuditEntryMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(entry, gotEntry))

	job := TrainingJob{
		ID:             "j-1",
		TensorID:       "t-1",
		Status:         JobRunning,
		TargetMaturity: 0.95,
		WorkerID:       "worker-0",
		CreatedAt:      now,
		StartedAt:      now,
	}
	buf = make([]byte, TrainingJobMUS.Size(job))
	TrainingJobMUS.Marshal(job, buf)
	gotJob, _, err := TrainingJobMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(job, gotJob))
	assert.True(t, gotJob.CompletedAt.IsZero())
}
