package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{"", StatusAvailable, false},
		{"available", StatusAvailable, false},
		{" Issued ", StatusIssued, false},
		{"restoring", StatusRestoring, false},
		{"written-off", StatusWrittenOff, false},
		{"lost", "", true},
		{"written off", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStatus(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrValidation) {
			t.Errorf("ParseStatus(%q) error %v is not ErrValidation", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestUnknownStatusIsDistinct(t *testing.T) {
	legacy := Status("на реставрации")
	if legacy.Known() {
		t.Fatal("legacy value must not be known")
	}
	if got := legacy.String(); got != `unknown("на реставрации")` {
		t.Errorf("String() = %s", got)
	}
	if StatusIssued.String() != "issued" {
		t.Errorf("String() = %s, want issued", StatusIssued.String())
	}
}

func TestCopybookJSONMarksLegacyStatus(t *testing.T) {
	legacy, err := json.Marshal(Copybook{ID: 1, EditionID: 2, Status: "lost"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(legacy), `"status":"lost"`) || !strings.Contains(string(legacy), `"status_known":false`) {
		t.Errorf("unexpected JSON for legacy status: %s", legacy)
	}

	known, err := json.Marshal(Copybook{ID: 1, EditionID: 2, Status: StatusAvailable})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(known), `"status_known":true`) {
		t.Errorf("unexpected JSON for known status: %s", known)
	}

	var back Copybook
	if err := json.Unmarshal(legacy, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Status != "lost" || back.Status.Known() {
		t.Errorf("round trip lost the raw status: %+v", back)
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		wantErr  bool
	}{
		{StatusAvailable, StatusRestoring, false},
		{StatusAvailable, StatusWrittenOff, false},
		{StatusRestoring, StatusAvailable, false},
		{StatusWrittenOff, StatusAvailable, false},
		{StatusIssued, StatusAvailable, false},
		{StatusIssued, StatusIssued, false},
		{Status("legacy"), StatusAvailable, false},
		{StatusAvailable, StatusIssued, true},
		{StatusRestoring, StatusIssued, true},
		{StatusAvailable, Status("legacy"), true},
	}

	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
		}
	}
}

func TestLocationFree(t *testing.T) {
	id := int64(7)
	if !(Location{ID: 1}).Free() {
		t.Error("location without occupant should be free")
	}
	if (Location{ID: 1, Occupant: &id}).Free() {
		t.Error("occupied location should not be free")
	}
}
