package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PinFile pins the solc version the artifacts are expected to be built with.
const PinFile = ".solc-version"

// Info captures the compiler version an artifact was built with.
type Info struct {
	Name    string
	Version string
}

var semverRegex = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// Parse extracts the numeric version from strings such as
// "0.8.24+commit.e11b9ed9" or "v0.8.24".
func Parse(raw string) (string, error) {
	match := semverRegex.FindStringSubmatch(raw)
	if len(match) < 2 {
		return "", fmt.Errorf("unable to parse solc version from %q", raw)
	}
	return match[1], nil
}

// Pinned reads the pinned solc version from root. It returns "" when no pin
// file exists.
func Pinned(root string) (string, error) {
	path := filepath.Join(root, PinFile)
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(contents)), nil
}

// Matches compares a pin with a recorded version. A major.minor pin accepts
// any patch release; a full pin must match exactly.
func Matches(pin, actual string) bool {
	p, err := Parse(pin)
	if err != nil {
		return false
	}
	a, err := Parse(actual)
	if err != nil {
		return false
	}
	if strings.Count(p, ".") == 1 {
		return CompareMajorMinor(p, a)
	}
	return p == a
}

// CompareMajorMinor compares major.minor portions of two semver-like versions.
func CompareMajorMinor(desired, actual string) bool {
	d := semverPrefix(desired)
	a := semverPrefix(actual)
	if d == "" || a == "" {
		return false
	}
	return strings.EqualFold(d, a)
}

func semverPrefix(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// Mismatches returns a warning for every compiler that does not satisfy pin.
// Artifacts with no recorded compiler are skipped.
func Mismatches(pin string, compilers []Info) []string {
	if pin == "" {
		return nil
	}
	var warnings []string
	for _, c := range compilers {
		if c.Version == "" || Matches(pin, c.Version) {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s was compiled with solc %s but %s pins %s", c.Name, c.Version, PinFile, pin))
	}
	return warnings
}
