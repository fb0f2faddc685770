package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"zh", "zh"},
		{"ZHO", "zh"},
		{"Mandarin", "zh"},
		{" english ", "en"},
		{"jpn", "ja"},
		{"xx", "xx"},
		{"klingon", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := ToISO2(tc.in); got != tc.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "auto-detect"},
		{"zh", "Chinese"},
		{"deu", "German"},
		{"xx", "XX"},
	}
	for _, tc := range tests {
		if got := DisplayName(tc.in); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
