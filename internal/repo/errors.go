package repo

import "github.com/cockroachdb/errors"

// Sentinel errors for the publish pipeline. Errors are classified by
// marking them with one of these and tested with errors.Is.
var (
	// ErrUsage means bad or missing CLI input or environment, caught
	// before any side effect.
	ErrUsage = errors.New("usage error")

	// ErrAlreadyPublished means a non-idempotent step found its output
	// already present. Disk images are release-defining, so this is
	// fatal rather than a skip.
	ErrAlreadyPublished = errors.New("release already published")

	// ErrBrokenTarget means an alias points at a path that does not
	// exist on disk.
	ErrBrokenTarget = errors.New("alias target missing")

	// ErrExternalTool means an external command exited non-zero or
	// produced broken output.
	ErrExternalTool = errors.New("external tool failed")

	// ErrDeclined means the operator rejected the dry-run review.
	// It is a deliberate abort, not a failure: nothing was pushed.
	ErrDeclined = errors.New("push declined")
)
