package bb

import (
	"fmt"

	"github.com/pkg/errors"
)

// PluginType tags user-visible failure reasons, matching the plugin
// identifier the host displays.
const PluginType = "burst_buffer/lod"

// InvalidRequestError rejects a submission whose staging directives fail
// validation. It is surfaced synchronously, before the job is accepted.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid burst buffer request: " + e.Reason
}

func InvalidRequestf(format string, args ...interface{}) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidRequest reports whether err (or its cause) is a directive
// validation failure.
func IsInvalidRequest(err error) bool {
	_, ok := errors.Cause(err).(*InvalidRequestError)
	return ok
}
