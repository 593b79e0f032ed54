package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldCommit, oldDate := Commit, Date
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })

	Commit, Date = "unknown", "unknown"
	if got := String(); !strings.HasPrefix(got, "calhue version "+Version+" (") {
		t.Errorf("String() = %q", got)
	}

	Commit, Date = "0123456789abcdef", "2026-01-01T00:00:00Z"
	got := String()
	if !strings.Contains(got, "commit: 01234567,") {
		t.Errorf("String() = %q, want abbreviated commit", got)
	}

	Commit = "abc"
	if got := String(); !strings.Contains(got, "commit: abc,") {
		t.Errorf("String() = %q, want short commit untouched", got)
	}
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
	if info.Version != Short() {
		t.Errorf("Version = %q, Short() = %q", info.Version, Short())
	}
}
