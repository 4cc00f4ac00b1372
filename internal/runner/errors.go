package runner

import "errors"

// ErrWorkspaceUnavailable is returned when an instance's workspace could
// not be materialized. Per §7 this is per-instance fatal: the instance is
// skipped and the run continues with the next one.
var ErrWorkspaceUnavailable = errors.New("runner: workspace unavailable")

// ErrAgentStream is returned when an agent session could not be started or
// its stream ended abnormally. Per §7 this is per-variant non-fatal.
var ErrAgentStream = errors.New("runner: agent stream failed")
