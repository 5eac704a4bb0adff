package deployment

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// =============================================================================
// Sync State Functions
// =============================================================================

// NeedsFullSync reports whether the full structural pass must run.
// It runs when forced, when no marker exists, or when the marker records a
// different version than the one currently running.
func NeedsFullSync(force bool, marker string, markerPresent bool, currentVersion string) bool {
	if force || !markerPresent {
		return true
	}
	return strings.TrimSpace(marker) != currentVersion
}

// StalenessNotice returns a warning when the role directory was synchronized
// by a different version. Returns an empty string when the versions match.
//
// When both versions are valid semantic versions the notice says whether the
// running version is newer or older.
func StalenessNotice(syncedVersion, currentVersion string) string {
	syncedVersion = strings.TrimSpace(syncedVersion)
	if syncedVersion == currentVersion {
		return ""
	}

	direction := "different"
	synced, errSynced := semver.NewVersion(syncedVersion)
	current, errCurrent := semver.NewVersion(currentVersion)
	if errSynced == nil && errCurrent == nil {
		switch current.Compare(synced) {
		case 1:
			direction = "newer"
		case -1:
			direction = "older"
		}
	}

	return fmt.Sprintf("role files were synchronized by version %s, running %s version %s; run `harbor deployment files update` to update from %s to %s",
		syncedVersion, direction, currentVersion, syncedVersion, currentVersion)
}
