package log

// FieldComponent tags every record with the emitting component.
const FieldComponent = "component"

// Standard component names.
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
