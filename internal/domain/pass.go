package domain

import "time"

// FileOutcome is the per-file summary collected during a pass, used for
// reporting and notifications. Tables is empty for skipped files.
type FileOutcome struct {
	Path         string         `json:"path"`
	Status       FileStatus     `json:"status"`
	Tables       []TableOutcome `json:"tables,omitempty"`
	RowsImported int64          `json:"rows_imported"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

// PassResult is the transient summary of one ingestion pass. It is reported
// to callers and observers; the durable outcome of each file lives in its
// FileRecord.
type PassResult struct {
	PassID       string        `json:"pass_id"`
	Total        int64         `json:"total"`
	Succeeded    int64         `json:"succeeded"`
	Partial      int64         `json:"partial"`
	Failed       int64         `json:"failed"`
	Skipped      int64         `json:"skipped"`
	RowsImported int64         `json:"rows_imported"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Message      string        `json:"message,omitempty"`
	Files        []FileOutcome `json:"files,omitempty"`
}

// Duration returns the wall-clock length of the pass.
func (r *PassResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Processed returns the number of files that reached a worker, excluding
// files the pass skipped before processing.
func (r *PassResult) Processed() int64 {
	return r.Succeeded + r.Partial + r.Failed
}
