package domain

// LogicalType is the destination-independent column type produced by schema
// inspection. Each sink dialect maps logical types to its own DDL types.
type LogicalType string

const (
	TypeString   LogicalType = "string"
	TypeSmallInt LogicalType = "smallint"
	TypeInteger  LogicalType = "integer"
	TypeBigInt   LogicalType = "bigint"
	TypeFloat    LogicalType = "float"
	TypeDouble   LogicalType = "double"
	TypeDecimal  LogicalType = "decimal"
	TypeCurrency LogicalType = "currency"
	TypeBoolean  LogicalType = "boolean"
	TypeDateTime LogicalType = "datetime"
	TypeBinary   LogicalType = "binary"
	TypeGUID     LogicalType = "guid"
	TypeUnknown  LogicalType = "unknown"
)

// ColumnDescriptor describes one column of a source table as reported by the
// table reader. MaxLength is zero when the source does not constrain length.
type ColumnDescriptor struct {
	Name         string      `json:"name"`
	Type         LogicalType `json:"type"`
	Nullable     bool        `json:"nullable"`
	MaxLength    int         `json:"max_length,omitempty"`
	IsPrimaryKey bool        `json:"is_primary_key,omitempty"`
	IsIdentity   bool        `json:"is_identity,omitempty"`
}

// TableStatus is the outcome of transferring a single table.
type TableStatus string

const (
	TableStatusSuccess TableStatus = "success"
	TableStatusFailed  TableStatus = "failed"
)

// TableOutcome records the result of one table transfer within a file. Failed
// tables report zero imported rows because their transaction is rolled back.
type TableOutcome struct {
	TableName    string      `json:"table_name"`
	Status       TableStatus `json:"status"`
	RowsImported int64       `json:"rows_imported"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// AggregateFileStatus folds per-table outcomes into the file-level status:
// all tables succeeded means success, all failed means failed, and a mix
// means partial success. An empty file with no tables counts as success.
func AggregateFileStatus(outcomes []TableOutcome) FileStatus {
	if len(outcomes) == 0 {
		return FileStatusSuccess
	}
	succeeded := 0
	for _, o := range outcomes {
		if o.Status == TableStatusSuccess {
			succeeded++
		}
	}
	switch succeeded {
	case len(outcomes):
		return FileStatusSuccess
	case 0:
		return FileStatusFailed
	}
	return FileStatusPartial
}

// TotalRows sums the imported row counts across outcomes.
func TotalRows(outcomes []TableOutcome) int64 {
	var total int64
	for _, o := range outcomes {
		total += o.RowsImported
	}
	return total
}
