package utils

import "testing"

func TestParseDraftFilename(t *testing.T) {
	tests := []struct {
		base     string
		wantName string
		wantRev  string
		wantErr  bool
	}{
		{"draft-ietf-example-protocol-00", "draft-ietf-example-protocol", "00", false},
		{"draft-author-topic-15", "draft-author-topic", "15", false},
		{"draft-a1-b2-03", "draft-a1-b2", "03", false},
		{"draft-example-0", "", "", true},     // one-digit revision
		{"mydraft-example-00", "", "", true},  // missing draft- prefix
		{"draft-Example-00", "", "", true},    // uppercase
		{"draft--double-00", "", "", true},    // empty segment
		{"draft-example", "", "", true},       // no revision
	}

	for _, tt := range tests {
		name, rev, err := ParseDraftFilename(tt.base)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDraftFilename(%q) should fail", tt.base)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDraftFilename(%q): %v", tt.base, err)
			continue
		}
		if name != tt.wantName || rev != tt.wantRev {
			t.Errorf("ParseDraftFilename(%q) = (%q, %q), want (%q, %q)", tt.base, name, rev, tt.wantName, tt.wantRev)
		}
	}
}

func TestNextRevision(t *testing.T) {
	tests := []struct {
		rev     string
		want    string
		wantErr bool
	}{
		{"00", "01", false},
		{"09", "10", false},
		{"98", "99", false},
		{"99", "", true},
		{"7", "", true},
		{"ab", "", true},
	}
	for _, tt := range tests {
		got, err := NextRevision(tt.rev)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NextRevision(%q) should fail", tt.rev)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NextRevision(%q) = (%q, %v), want %q", tt.rev, got, err, tt.want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"user@example.org", "a.b+c@sub.example.co"}
	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = false", e)
		}
	}
	invalid := []string{"", "user", "user@", "@example.org", "user@example"}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = true", e)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  hello\x00world  "); got != "helloworld" {
		t.Errorf("SanitizeInput = %q", got)
	}
}
