package core

import (
	"fmt"
	"strings"
	"time"
)

// LogStatus classifies a run log entry.
type LogStatus string

const (
	// StatusDone marks a row that produced a create or an update, and
	// the final summary of a successful run.
	StatusDone LogStatus = "done"
	// StatusSkipped marks a row dropped by a skip condition: a missing
	// required field, the exclusion filter, duplicate matching or a
	// per-row coercion failure.
	StatusSkipped LogStatus = "skipped"
	// StatusError marks resolver warnings and the summary of an
	// aborted run.
	StatusError LogStatus = "error"
)

// LogEntry is one line of a run's log. Entries are append-only and kept
// in emission order.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Status  LogStatus `json:"status"`
	Message string    `json:"message"`
}

const logTimeLayout = "2006-01-02 15:04:05"

// Line renders the entry in the report format: tab-separated timestamp,
// profile name with id, source filename, status and message.
func (e LogEntry) Line(profileName string, profileID int64, filename string) string {
	return strings.Join([]string{
		e.Time.Format(logTimeLayout),
		fmt.Sprintf("%s(%d)", profileName, profileID),
		filename,
		string(e.Status),
		e.Message,
	}, "\t")
}
