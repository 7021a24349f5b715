package util

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name, input, replacement, expected string
		prefixLen, suffixLen               int
	}{
		{"short string untouched", "short", "...", "short", 3, 3},
		{"long string truncated", "1234567890", "...", "123...890", 3, 3},
		{"suffix only", "1234567890", "...", "...7890", 0, 4},
		{"prefix only", "1234567890", "...", "1234...", 4, 0},
		{"prefix cut inside rune", "abécdefgh", "...", "ab...", 3, 0},
		{"suffix cut inside rune", "abcdefgéh", "...", "...h", 0, 2},
		{"multibyte kept whole", "日本語のテキスト", "...", "日本...", 7, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateString(tt.input, tt.prefixLen, tt.suffixLen, tt.replacement)
			if result != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name, input, expected string
	}{
		{"unset", "", "<unset>"},
		{"short", "sk-1234", "****"},
		{"api key", "sk-proj-abcdefghijklmnop", "sk-...mnop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSecret(tt.input); got != tt.expected {
				t.Errorf("MaskSecret(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGenerateRandomID(t *testing.T) {
	id1 := GenerateRandomID("ftjob-")
	id2 := GenerateRandomID("ftjob-")
	if !strings.HasPrefix(id1, "ftjob-") {
		t.Errorf("ID should start with 'ftjob-', got '%s'", id1)
	}
	if len(id1) != len("ftjob-")+24 {
		t.Errorf("unexpected ID length: %s", id1)
	}
	if id1 == id2 {
		t.Error("random IDs should differ")
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", id, err)
	}
}

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("FINETUNE_TEST_ENV", "custom")
	if got := GetEnvWithDefault("FINETUNE_TEST_ENV", "default"); got != "custom" {
		t.Errorf("expected 'custom', got '%s'", got)
	}
	t.Setenv("FINETUNE_TEST_ENV", "   ")
	if got := GetEnvWithDefault("FINETUNE_TEST_ENV", "default"); got != "default" {
		t.Errorf("blank value should fall back, got '%s'", got)
	}
}

func TestLookupEnvInt(t *testing.T) {
	t.Setenv("FINETUNE_TEST_INT", "")
	if _, ok, err := LookupEnvInt("FINETUNE_TEST_INT"); ok || err != nil {
		t.Errorf("unset should report ok=false, err=nil; got ok=%v err=%v", ok, err)
	}

	t.Setenv("FINETUNE_TEST_INT", "7")
	if v, ok, err := LookupEnvInt("FINETUNE_TEST_INT"); !ok || err != nil || v != 7 {
		t.Errorf("expected 7, got %d ok=%v err=%v", v, ok, err)
	}

	t.Setenv("FINETUNE_TEST_INT", "seven")
	if _, ok, err := LookupEnvInt("FINETUNE_TEST_INT"); !ok || err == nil {
		t.Error("invalid integer should report an error")
	}
}

func TestLookupEnvFloat(t *testing.T) {
	t.Setenv("FINETUNE_TEST_FLOAT", "0.25")
	if v, ok, err := LookupEnvFloat("FINETUNE_TEST_FLOAT"); !ok || err != nil || v != 0.25 {
		t.Errorf("expected 0.25, got %v ok=%v err=%v", v, ok, err)
	}
	t.Setenv("FINETUNE_TEST_FLOAT", "warm")
	if _, _, err := LookupEnvFloat("FINETUNE_TEST_FLOAT"); err == nil {
		t.Error("invalid float should report an error")
	}
}

func TestLookupEnvDuration(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  time.Duration
		wantOK    bool
		wantError bool
	}{
		{"unset", "", 0, false, false},
		{"seconds", "30", 30 * time.Second, true, false},
		{"go duration", "1m30s", 90 * time.Second, true, false},
		{"invalid", "soon", 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FINETUNE_TEST_DURATION", tt.input)
			v, ok, err := LookupEnvDuration("FINETUNE_TEST_DURATION")
			if (err != nil) != tt.wantError {
				t.Fatalf("error = %v, wantError %v", err, tt.wantError)
			}
			if ok != tt.wantOK || v != tt.expected {
				t.Errorf("got %v ok=%v, expected %v ok=%v", v, ok, tt.expected, tt.wantOK)
			}
		})
	}
}
