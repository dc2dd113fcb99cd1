package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, sha string) { Version, GitSHA = v, sha }(Version, GitSHA)

	tests := []struct {
		version, sha, want string
	}{
		{"dev", "unknown", "dev (unknown)"},
		{"v0.3.1", "0123456789abcdef", "v0.3.1 (0123456)"},
		{"v1.0.0", "abc", "v1.0.0 (abc)"},
	}
	for _, tt := range tests {
		Version, GitSHA = tt.version, tt.sha
		if got := String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
