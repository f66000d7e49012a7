package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// Both are compared as semantic versions when they parse; development build
// names such as "build-1a2b3c4d" fall back to string comparison.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)
	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}
	return newSemver.GreaterThan(oldSemver)
}

// IsRelease reports whether v is a semantic version without prerelease suffix
func IsRelease(v string) bool {
	parsed, err := semver.NewVersion(v)
	return err == nil && parsed.Prerelease() == ""
}
