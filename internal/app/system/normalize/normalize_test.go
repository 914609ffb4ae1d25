package normalize

import "testing"

func TestRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GeDer", "geder"},
		{"  Supporter ", "supporter"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Role(tt.in); got != tt.want {
			t.Errorf("Role(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+995 555 12 34 56", "+995555123456"},
		{"(555) 123-456", "555123456"},
		{"555123456", "555123456"},
		{"  +995555123456  ", "+995555123456"},
	}
	for _, tt := range tests {
		if got := Phone(tt.in); got != tt.want {
			t.Errorf("Phone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
