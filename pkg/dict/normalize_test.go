package dict

import "testing"

func TestNormalizeLowercaseASCII(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"DOMINUS", "dominus"},
		{"Ætas", "ætas"},
		{"dūs", "dus"},
		{"ꝑ", "ꝑ"},
		{"", ""},
		{"simple", "simple"},
	}
	for _, tt := range tests {
		got := NormalizeLowercaseASCII(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeLowercaseASCII(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeLowercaseUTF8(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"DOMINUS", "dominus"},
		{"Dūs", "dūs"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeLowercaseUTF8(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeLowercaseUTF8(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeNFC(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"du\u0304s", "dūs"},
		{"dūs", "dūs"},
		{"Dūs", "Dūs"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeNFC(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeNFC(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeNone(t *testing.T) {
	for _, input := range []string{"DOMINUS", "dūs", "du\u0304s", ""} {
		got := NormalizeNone(input)
		if got != input {
			t.Errorf("NormalizeNone(%q) = %q, want unchanged", input, got)
		}
	}
}

func TestGetNormalizer(t *testing.T) {
	tests := []struct {
		mode  string
		input string
		want  string
	}{
		{"lowercase_ascii", "Dūs", "dus"},
		{"lowercase_utf8", "Dūs", "dūs"},
		{"nfc", "Du\u0304s", "Dūs"},
		{"none", "Dūs", "Dūs"},
		{"", "Dūs", "dus"},             // default = lowercase_ascii
		{"unknown_mode", "Dūs", "dus"}, // fallback = lowercase_ascii
	}
	for _, tt := range tests {
		fn := GetNormalizer(tt.mode)
		got := fn(tt.input)
		if got != tt.want {
			t.Errorf("GetNormalizer(%q)(%q) = %q, want %q", tt.mode, tt.input, got, tt.want)
		}
	}
}

func TestValidNormalizeMode(t *testing.T) {
	for _, mode := range []string{"lowercase_ascii", "lowercase_utf8", "nfc", "none"} {
		if !ValidNormalizeMode(mode) {
			t.Errorf("ValidNormalizeMode(%q) = false, want true", mode)
		}
	}
	for _, mode := range []string{"", "NFC", "lowercase", "nfd"} {
		if ValidNormalizeMode(mode) {
			t.Errorf("ValidNormalizeMode(%q) = true, want false", mode)
		}
	}
}
