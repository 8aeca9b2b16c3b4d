package identity

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, username, want string
	}{
		{"Ada", "Lovelace", "ada", "Ada Lovelace"},
		{"Ada", "", "ada", "Ada"},
		{"", "Lovelace", "ada", "Lovelace"},
		{"", "", "ada", "ada"},
		{"  ", " ", "ada", "ada"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.first, tt.last, tt.username); got != tt.want {
			t.Errorf("DisplayName(%q, %q, %q) = %q, want %q", tt.first, tt.last, tt.username, got, tt.want)
		}
	}
}

func TestAvatar(t *testing.T) {
	if got := Avatar("https://cdn.example/a.png", "ada"); got != "https://cdn.example/a.png" {
		t.Errorf("uploaded image should win, got %q", got)
	}
	if got := Avatar("", "ada"); got != "https://api.dicebear.com/7.x/avataaars/svg?seed=ada" {
		t.Errorf("unexpected generated avatar %q", got)
	}
}
