package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried through the call chain via context.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTaskIndex = "task_index"
	FieldPromptID  = "prompt_id"
	FieldSKU       = "sku"
	FieldComponent = "component"
	FieldOwner     = "owner_uid"
)

// Metric fields, used with the Entry API for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldFailed     = "failed"
	FieldStatus     = "status"
	FieldSize       = "size"
)
