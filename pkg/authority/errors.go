package authority

import "errors"

var (
	// ErrNotInstalled means the authority binary is not on PATH.
	ErrNotInstalled = errors.New("authority CLI is not installed or not in PATH")

	// ErrNotSignedIn means there is no active authority session.
	ErrNotSignedIn = errors.New("not signed in to the authority CLI")
)
