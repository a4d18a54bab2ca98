package kernel

import "fmt"

// SchemaRequiredError reports a Config missing its required Schema.
type SchemaRequiredError struct{}

func (e *SchemaRequiredError) Error() string {
	return "kernel: config requires a non-nil Schema"
}

// LifecycleTimeoutError wraps one or more lifecycle rounds that missed
// their acknowledgement deadline during a tick.
type LifecycleTimeoutError struct {
	Count int
}

func (e *LifecycleTimeoutError) Error() string {
	return fmt.Sprintf("kernel: %d lifecycle round(s) timed out", e.Count)
}
