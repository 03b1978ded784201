package session

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "main", false},
		{"digits", "phone2", false},
		{"hyphen and underscore", "work_laptop-1", false},
		{"single char", "x", false},
		{"64 chars", strings.Repeat("s", 64), false},
		{"empty", "", true},
		{"uppercase", "Work", true},
		{"space", "two words", true},
		{"dot", "a.b", true},
		{"65 chars", strings.Repeat("s", 65), true},
		{"slash", "a/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"firebase style", "Zk3fQ0aBcD9xYz12", false},
		{"email like", "ada@example.com", false},
		{"mixed case", "AbC", false},
		{"empty", "", true},
		{"space", "a b", true},
		{"newline", "a\nb", true},
		{"too long", strings.Repeat("u", 257), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
	if err := ValidateUserID(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("ValidateUserID(\"\") = %v, want ErrEmptyUserID", err)
	}
}
