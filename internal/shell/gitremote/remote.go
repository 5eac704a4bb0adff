// Package gitremote reads the remote URL of the project's git repository.
package gitremote

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	giturls "github.com/whilp/git-urls"
)

// DefaultRemote is the remote whose URL becomes the git_url variable.
const DefaultRemote = "origin"

// ErrNoRemoteURL is returned when the remote exists but has no URL configured.
var ErrNoRemoteURL = errors.New("remote has no URL")

// RemoteURL returns the first configured URL of the named remote of the
// repository containing dir. Parent directories are searched for .git.
func RemoteURL(dir, name string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open git repository at %s: %w", dir, err)
	}

	remote, err := repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("read remote %q: %w", name, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRemoteURL, name)
	}
	return urls[0], nil
}

// Lookup returns a function that reads the origin URL of the repository at dir.
// It matches deployment.RemoteURLFunc.
func Lookup(dir string) func() (string, error) {
	return func() (string, error) {
		return RemoteURL(dir, DefaultRemote)
	}
}

// unparseableURL replaces remote URLs that cannot be redacted.
const unparseableURL = "<unparseable remote URL>"

// SafeURL strips credentials from a remote URL so it can be logged.
func SafeURL(raw string) string {
	parse := giturls.Parse
	if strings.Contains(raw, "://") {
		// The scp and local-path fallbacks would keep credentials verbatim.
		parse = giturls.ParseTransport
	}
	u, err := parse(raw)
	if err != nil {
		return unparseableURL
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
