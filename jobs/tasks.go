package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHRNotifyScan is the task type for the HR hand-off scan.
	TaskHRNotifyScan = "hr:notify_scan"
)

// HRNotifyScanPayload parameterizes one hand-off scan.
type HRNotifyScanPayload struct {
	// Grace is how long an approval must have rested before hand-off.
	Grace time.Duration `json:"grace"`
	// Limit caps how many requests one scan processes. Zero means no cap.
	Limit int `json:"limit"`
}

// NewHRNotifyScanTask constructs an Asynq task for the hand-off scan.
func NewHRNotifyScanTask(payload HRNotifyScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHRNotifyScan, data), nil
}
