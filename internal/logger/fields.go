package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldPassID is the ingestion pass ID
	FieldPassID = "pass_id"

	// FieldFile is the source file path being processed
	FieldFile = "file"

	// FieldTable is the table name being transferred
	FieldTable = "table"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the source file format identifier
	FieldSource = "source"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldRows is the number of rows transferred
	FieldRows = "rows"

	// FieldTables is the number of tables involved
	FieldTables = "tables"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
