package utils

import (
	"strings"
	"testing"

	"tablematch_server/models"
)

func TestGenerateJoinCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateJoinCode()
		if err != nil {
			t.Fatalf("GenerateJoinCode() error = %v", err)
		}
		if len(code) != models.JoinCodeLength {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), models.JoinCodeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(models.JoinCodeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
}
