package queue

import "errors"

// Sentinel errors for the queue package. Check with errors.Is.
var (
	// ErrUserNotFound means no queues exist for the user; the caller
	// referenced an uninitialized key.
	ErrUserNotFound = errors.New("queue: user not found")

	// ErrPathNotFound means the user has queues but not for the
	// requested learning path.
	ErrPathNotFound = errors.New("queue: learning path not found")

	// ErrStitchNotFound means none of the user's queues contain the
	// stitch.
	ErrStitchNotFound = errors.New("queue: stitch not found")

	// ErrNoStitches means the queue exists but is empty.
	ErrNoStitches = errors.New("queue: no stitches available")

	// ErrRepositionFailed means position bookkeeping was found corrupted
	// mid-operation. The queue is left untouched; treat as a defect.
	ErrRepositionFailed = errors.New("queue: repositioning failed")
)
