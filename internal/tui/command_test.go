package tui

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"", Command{}},
		{"  ", Command{}},
		{"quit", Command{Name: "quit", Args: []string{}}},
		{":Login  u1  Ann Lee", Command{Name: "login", Args: []string{"u1", "Ann", "Lee"}}},
		{"read b", Command{Name: "read", Args: []string{"b"}}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCommand(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestCommandArg(t *testing.T) {
	c := ParseCommand("login u1")
	if c.Arg(0) != "u1" || c.Arg(1) != "" {
		t.Errorf("Arg() = %q, %q", c.Arg(0), c.Arg(1))
	}
}
