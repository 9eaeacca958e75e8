package sheets

import (
	"errors"
	"strings"
	"testing"
)

func TestValidSheetName(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
		ok    bool
	}{
		{"plain", "Expenses", true},
		{"with spaces", "March 2024", true},
		{"dashes", "2024-03", true},
		{"empty", "", false},
		{"bang", "Expenses!A1", false},
		{"quote", "Bob's", false},
		{"slash", "a/b", false},
		{"newline", "a\nb", false},
		{"too long", strings.Repeat("x", 101), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidSheetName(tt.sheet)
			if tt.ok && err != nil {
				t.Fatalf("ValidSheetName(%q) = %v", tt.sheet, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidSheetName) {
				t.Fatalf("ValidSheetName(%q) = %v, want ErrInvalidSheetName", tt.sheet, err)
			}
		})
	}
}
