package ui

import (
	"strings"
	"testing"
)

func TestFormatKeyValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  string
	}{
		{name: "int", key: "width", value: 640, want: "640"},
		{name: "bool", key: "escape_closes", value: true, want: "true"},
		{name: "float", key: "scale_x", value: 1.5, want: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatKeyValue(tt.key, tt.value)
			if !strings.Contains(got, tt.key) {
				t.Errorf("FormatKeyValue() missing key %q", tt.key)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("FormatKeyValue() missing value %q", tt.want)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	if got := FormatStatus(true, "seat0"); !strings.Contains(got, "●") || !strings.Contains(got, "seat0") {
		t.Errorf("FormatStatus(true) = %q", got)
	}
	if got := FormatStatus(false, "seat0"); !strings.Contains(got, "○") {
		t.Errorf("FormatStatus(false) = %q", got)
	}
}

func TestTable(t *testing.T) {
	got := Table([]string{"ID", "NAME"}, [][]string{{"0", "seat0"}, {"1", "seat1"}})
	for _, want := range []string{"ID", "NAME", "seat0", "seat1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Table() missing %q:\n%s", want, got)
		}
	}
}

func TestSeparator(t *testing.T) {
	if got := separator(0, ""); strings.Count(got, "─") != 50 {
		t.Errorf("separator() defaults wrong: %q", got)
	}
	if got := separator(3, "="); strings.Count(got, "=") != 3 {
		t.Errorf("separator(3) = %q", got)
	}
}

func TestFormatHeader(t *testing.T) {
	got := FormatHeader("Seats")
	if !strings.Contains(got, "Seats") || !strings.Contains(got, "\n") {
		t.Errorf("FormatHeader() = %q", got)
	}
}
