package version

import (
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}

	if !strings.Contains(info.Platform, "/") {
		t.Error("Platform should contain OS/ARCH format")
	}

	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Error("GoVersion should start with 'go'")
	}
}

func TestGetVersionString(t *testing.T) {
	versionStr := GetVersionString()

	if !strings.Contains(versionStr, "gMaelstrom") {
		t.Error("Version string should contain 'gMaelstrom'")
	}

	if !strings.Contains(versionStr, Version) {
		t.Error("Version string should contain the version number")
	}
}

func TestGetDetailedVersionString(t *testing.T) {
	detailed := GetDetailedVersionString()

	expectedFields := []string{
		"gMaelstrom",
		"Git commit:",
		"Build date:",
		"Go version:",
		"Platform:",
	}

	for _, field := range expectedFields {
		if !strings.Contains(detailed, field) {
			t.Errorf("Detailed version string should contain '%s'", field)
		}
	}
}

func TestIsRelease(t *testing.T) {
	// Default build state has no injected commit, so this is a dev build.
	if GitCommit == "unknown" && IsRelease() {
		t.Error("IsRelease() should be false without an injected git commit")
	}
}
