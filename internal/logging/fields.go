package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDirectory is the watched directory a log line concerns.
	FieldDirectory = "directory"
	// FieldPath is the file a log line concerns.
	FieldPath = "path"
	// FieldCycleID correlates every line emitted during one monitor cycle.
	FieldCycleID = "cycle_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
)
