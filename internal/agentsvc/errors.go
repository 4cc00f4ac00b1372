package agentsvc

import "errors"

// ErrDeniedToolRequested is returned when a Request's AllowedTools includes
// a tool the agent service must never be granted (§6).
var ErrDeniedToolRequested = errors.New("agentsvc: denied tool requested")

// ErrAgentServiceStart is returned when the agent-service process fails to
// start.
var ErrAgentServiceStart = errors.New("agentsvc: failed to start agent service")
