package run

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"preview", ModePreview, false},
		{"dry-run", ModeDryRun, false},
		{"create", ModeCreate, false},
		{"", "", true},
		{"yolo", "", true},
		{"Preview", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	fixed := IssueResult{Fixed: true}
	broken := IssueResult{Fixed: false}

	tests := []struct {
		name    string
		results []IssueResult
		want    string
	}{
		{"no issues", nil, StatusSuccess},
		{"all fixed", []IssueResult{fixed, fixed}, StatusSuccess},
		{"none fixed", []IssueResult{broken, broken}, StatusFailed},
		{"two of three fixed", []IssueResult{fixed, fixed, broken}, StatusPartial},
	}
	for _, tt := range tests {
		if got := DeriveStatus(tt.results); got != tt.want {
			t.Errorf("%s: DeriveStatus = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestModeEffectful(t *testing.T) {
	if ModePreview.Effectful() {
		t.Error("preview must not be effectful")
	}
	if !ModeDryRun.Effectful() || !ModeCreate.Effectful() {
		t.Error("dry-run and create must be effectful")
	}
}
