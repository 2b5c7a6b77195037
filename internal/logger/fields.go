package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the request context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldImageID is the generated image identifier
	FieldImageID = "image_id"

	// FieldContentHash is the digest of the normalized image bytes
	FieldContentHash = "content_hash"

	// FieldProvider is the caption provider that served the request
	FieldProvider = "provider"

	// FieldSource is the batch input source identifier
	FieldSource = "source"
)

// Metric fields, attached per entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
