package visualization

import (
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{"linux", "xdg-open", false},
		{"darwin", "open", false},
		{"windows", "cmd", false},
		{"plan9", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "http://localhost:1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("browserCommand(%q) error = %v, wantErr %v", tt.goos, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cmd.Args[0] != tt.want {
				t.Errorf("browserCommand(%q) = %q, want %q", tt.goos, cmd.Args[0], tt.want)
			}
			if last := cmd.Args[len(cmd.Args)-1]; last != "http://localhost:1" {
				t.Errorf("url should be the last argument, got %q", last)
			}
		})
	}
}
