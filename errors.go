package cppack

import "golang.org/x/xerrors"

// Marker is a stable, kebab-case error identity, letting callers and tests
// assert on *what kind* of failure occurred without parsing prose.
type Marker string

const (
	MarkerInvalidName       Marker = "invalid-name"
	MarkerInvalidVersion    Marker = "invalid-version"
	MarkerInvalidDepExpr    Marker = "invalid-dep-expr"
	MarkerInvalidManifest   Marker = "invalid-manifest"
	MarkerInvalidSpdx       Marker = "invalid-spdx"
	MarkerLibraryCycle      Marker = "library-cycle"
	MarkerNoDependencySoln  Marker = "no-dependency-solution"
	MarkerRepoSyncMissing   Marker = "repo-sync-missing"
	MarkerRepoSyncInvalid   Marker = "repo-sync-invalid-index"
	MarkerRepoIndexTooNew   Marker = "repo-index-too-new"
	MarkerNetworkFailure    Marker = "network-failure"
	MarkerArchiveMalformed  Marker = "archive-malformed"
	MarkerManifestMismatch  Marker = "manifest-mismatch"
	MarkerCorruptedCache    Marker = "corrupted-cache-entry"
	MarkerDiskFull          Marker = "disk-full"
	MarkerPermissionDenied  Marker = "permission-denied"
	MarkerSyntaxCheckFailed Marker = "syntax-check-failed"
	MarkerMissingUsingDecl  Marker = "missing-using-declaration"
	MarkerCompileFailed     Marker = "compile-failed"
	MarkerLinkFailed        Marker = "link-failed"
	MarkerBuildTestsFailed  Marker = "build-failed-tests-failed"
	MarkerBadToolchain      Marker = "bad-toolchain"
)

// Error is the uniform result type errors surface through: a marker
// identity, a human-readable message, and an optional wrapped cause.
type Error struct {
	Marker  Marker
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err carries the given marker, looking through wrapped
// errors the way callers are expected to check error identity.
func Is(err error, m Marker) bool {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Marker == m
	}
	return false
}

// Errorf constructs a marked Error whose message is formatted with
// xerrors.Errorf. Only the formatted text is kept: the result has no Cause,
// so an error passed as an operand is not reachable through Unwrap.
func Errorf(m Marker, format string, args ...interface{}) error {
	return &Error{
		Marker:  m,
		Message: xerrors.Errorf(format, args...).Error(),
	}
}

// Wrap attaches a marker to an existing error without discarding it.
func Wrap(m Marker, cause error, msg string) error {
	return &Error{Marker: m, Message: msg, Cause: cause}
}
