package id_test

import (
	"strings"
	"testing"

	"github.com/alex-monroe/scrapequeue/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewJobID()
	parsed, err := id.ParseJobID(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != original {
		t.Errorf("round-trip mismatch: %q != %q", parsed, original)
	}
}

func TestCrossTypeRejection(t *testing.T) {
	if _, err := id.ParseJobID(id.NewWorkerID().String()); err == nil {
		t.Error("ParseJobID accepted a worker id")
	}
	if _, err := id.ParseWorkerID(id.NewJobID().String()); err == nil {
		t.Error("ParseWorkerID accepted a job id")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Short() != "" || i.Prefix() != "" {
		t.Errorf("nil id rendered as %q/%q/%q", i.String(), i.Short(), i.Prefix())
	}
}

func TestShort(t *testing.T) {
	a, b := id.NewJobID(), id.NewJobID()
	if len(a.Short()) != 8 {
		t.Fatalf("Short() = %q, want 8 characters", a.Short())
	}
	if !strings.HasSuffix(a.String(), a.Short()) {
		t.Errorf("Short() %q is not a suffix of %q", a.Short(), a.String())
	}
	if a.Short() == b.Short() {
		t.Errorf("two fresh ids share short form %q", a.Short())
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewJobID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned != original {
		t.Errorf("mismatch: %q != %q", scanned, original)
	}

	nilVal, err := id.Nil.Value()
	if err != nil || nilVal != nil {
		t.Fatalf("Nil.Value() = %v, %v; want nil, nil", nilVal, err)
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Fatalf("Scan(nil) = %v, nil=%v", err, scanned.IsNil())
	}
}
