package us144mkii

import "errors"

// Error taxonomy. Each sentinel is wrapped with fmt.Errorf("%w", ...)
// by the component that raises it so callers can errors.Is against it while
// still getting a descriptive message.
var (
	// ErrConfig is returned when any step of the rate-configuration control
	// sequence fails. The instance's cached rate is invalidated before this
	// is returned, so a subsequent configure attempt starts from scratch.
	ErrConfig = errors.New("us144mkii: rate configuration failed")

	// ErrSubmission is returned when a URB/transfer could not be submitted.
	ErrSubmission = errors.New("us144mkii: transfer submission failed")

	// ErrTransport marks a transfer that completed with a non-success
	// transport status that was not one of the expected teardown statuses.
	ErrTransport = errors.New("us144mkii: transport error")

	// ErrSyncLost is fatal for the active streams: it is raised once
	// consecutive out-of-range feedback values exceed FeedbackSyncLossThreshold.
	ErrSyncLost = errors.New("us144mkii: feedback sync lost")

	// ErrAllocation is returned only at instance creation time.
	ErrAllocation = errors.New("us144mkii: allocation failed")

	// ErrNotRunning is returned by operations that require an active stream.
	ErrNotRunning = errors.New("us144mkii: stream not running")
)
