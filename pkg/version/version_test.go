package version_test

import (
	"strings"
	"testing"

	"github.com/pzverkov/qkd-go/pkg/version"
)

// TestString tests the build identification line.
func TestString(t *testing.T) {
	s := version.String()
	if !strings.HasPrefix(s, "qkd-fh ") {
		t.Errorf("String() = %q, want qkd-fh prefix", s)
	}
	if !strings.Contains(s, version.Version) {
		t.Errorf("String() = %q, missing version %q", s, version.Version)
	}
}
