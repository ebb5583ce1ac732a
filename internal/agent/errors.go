package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrAccessDenied is returned when the OS refuses to list sockets.
var ErrAccessDenied = errors.New("connection enumeration denied")

// Artifact names a persisted table.
type Artifact string

const (
	ArtifactStore   Artifact = "store"
	ArtifactArchive Artifact = "archive"
	ArtifactDomains Artifact = "domains"
)

// PersistError is a failed save of one artifact. Retryable marks failures
// expected to clear on their own (file busy, locked, permission flip).
type PersistError struct {
	Artifact  Artifact
	Err       error
	Retryable bool
}

func (e *PersistError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("persist %s (%s): %v", e.Artifact, kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

func newPersistError(a Artifact, err error) *PersistError {
	return &PersistError{Artifact: a, Err: err, Retryable: isRetryable(err)}
}

func isRetryable(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"database is locked", "sqlite_busy", "busy", "readonly", "read-only", "permission denied"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
