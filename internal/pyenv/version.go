package pyenv

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	numpyMinimum  = "v1.23"
	numpyFallback = "1.23.5"
	pythonCutoff  = "v3.11"
)

var releasePattern = regexp.MustCompile(`^(\d+(?:\.\d+){0,2})(?:[-_.]?((?:a|b|rc|alpha|beta|dev|post)\d*))?$`)

// ResolveVersion applies known install compatibility rules and returns the
// version to install. An empty result means "latest".
//
// numpy releases older than 1.23 do not build on Python 3.11+, so they are
// replaced by 1.23.5 there. A numpy version that cannot be parsed on such an
// interpreter falls back to latest.
func ResolveVersion(pkg, version, pythonVersion string) string {
	if version == "" || !strings.EqualFold(pkg, "numpy") {
		return version
	}

	py := canonical(pythonVersion)
	if py == "" || semver.Compare(py, pythonCutoff) < 0 {
		return version
	}

	v := canonical(version)
	if v == "" {
		return ""
	}
	if semver.Compare(v, numpyMinimum) < 0 {
		return numpyFallback
	}
	return version
}

// canonical converts a release string such as "1.21.0rc1" into semver form
// ("v1.21.0-rc1"). Returns "" when the string is not understood.
func canonical(v string) string {
	m := releasePattern.FindStringSubmatch(strings.TrimPrefix(strings.TrimSpace(v), "v"))
	if m == nil {
		return ""
	}
	s := "v" + m[1]
	if m[2] != "" {
		s += "-" + m[2]
	}
	if !semver.IsValid(s) {
		return ""
	}
	return s
}

// Spec returns the installer requirement for pkg at version.
func Spec(pkg, version string) string {
	if version == "" {
		return pkg
	}
	return pkg + "==" + version
}
