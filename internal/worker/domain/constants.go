package domain

import "strings"

// Job status values. A terminal failure is stored as StatusErrPrefix followed by a message.
const (
	StatusPending   = "pending"
	StatusStarted   = "started"
	StatusOK        = "ok"
	StatusErrPrefix = "err: "
)

// Trigger kinds a worker definition can use to decide when to look for work.
const (
	TriggerPoll   = "poll"
	TriggerNotify = "notify"
	TriggerAMQP   = "amqp"
)

// ErrStatus formats a failure message as a terminal job status.
func ErrStatus(msg string) string {
	return StatusErrPrefix + msg
}

// IsErrStatus reports whether status records a failed job.
func IsErrStatus(status string) bool {
	return strings.HasPrefix(status, strings.TrimSpace(StatusErrPrefix))
}

// IsTerminal reports whether status is a final job status.
func IsTerminal(status string) bool {
	return status != StatusPending && status != StatusStarted && status != ""
}
