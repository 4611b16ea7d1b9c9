package core

import (
	"errors"
	"testing"
)

func TestValidateTensorRecord(t *testing.T) {
	blob := MustEncodeTensor(DefaultTensor())

	tests := []struct {
		name    string
		record  *TensorRecord
		wantErr error
	}{
		{
			name:    "valid record",
			record:  &TensorRecord{ID: "t1", EntityID: "e1", Blob: blob, Maturity: 0.3},
			wantErr: nil,
		},
		{
			name:    "valid record at full maturity",
			record:  &TensorRecord{ID: "t1", EntityID: "e1", Blob: blob, Maturity: 1.0, TrainingCycles: 12},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidTensorRecord,
		},
		{
			name:    "empty id",
			record:  &TensorRecord{EntityID: "e1", Blob: blob},
			wantErr: ErrEmptyID,
		},
		{
			name:    "id with NUL byte",
			record:  &TensorRecord{ID: "t\x001", EntityID: "e1", Blob: blob},
			wantErr: ErrInvalidID,
		},
		{
			name:    "empty entity",
			record:  &TensorRecord{ID: "t1", Blob: blob},
			wantErr: ErrEmptyID,
		},
		{
			name:    "missing blob",
			record:  &TensorRecord{ID: "t1", EntityID: "e1"},
			wantErr: ErrEmptyBlob,
		},
		{
			name:    "maturity above one",
			record:  &TensorRecord{ID: "t1", EntityID: "e1", Blob: blob, Maturity: 1.01},
			wantErr: ErrInvalidMaturity,
		},
		{
			name:    "negative maturity",
			record:  &TensorRecord{ID: "t1", EntityID: "e1", Blob: blob, Maturity: -0.1},
			wantErr: ErrInvalidMaturity,
		},
		{
			name:    "negative cycles",
			record:  &TensorRecord{ID: "t1", EntityID: "e1", Blob: blob, TrainingCycles: -1},
			wantErr: ErrInvalidTrainingCycles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTensorRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTensorRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidTensorRecord) {
				t.Errorf("ValidateTensorRecord() error = %v, should wrap ErrInvalidTensorRecord", err)
			}
		})
	}
}

func TestParseAccessLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    AccessLevel
		wantErr bool
	}{
		{"private", AccessPrivate, false},
		{"SHARED", AccessShared, false},
		{"public", AccessPublic, false},
		{"secret", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccessLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAccessLevel) {
					t.Errorf("ParseAccessLevel(%q) error = %v, want ErrInvalidAccessLevel", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAccessLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		got, err := ParseAction(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %v, %v", a.String(), got, err)
		}
	}

	if _, err := ParseAction("execute"); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("ParseAction(execute) error = %v, want ErrInvalidAction", err)
	}
	if Action(99).IsValid() {
		t.Error("Action(99) should be invalid")
	}
}
