package domain

import (
	"encoding/json"
	"time"
)

// Job names routed through the delayed queue.
const (
	JobUploadStage = "dialer_upload_stage"
	JobQueryStage  = "dialer_query_stage"
)

// StageJob is the delayed-queue payload for one pipeline stage execution.
// Attempt is carried in the payload so a retry survives worker restarts and
// independent scheduler ticks.
type StageJob struct {
	JobID      string     `json:"job_id"`
	Bucket     BucketName `json:"bucket"`
	Vendor     Vendor     `json:"vendor"`
	Stage      Stage      `json:"stage"`
	BatchNo    *int32     `json:"batch_no,omitempty"`
	TaskID     int64      `json:"task_id,omitempty"`
	Attempt    int32      `json:"attempt"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

func (j StageJob) StageType() string {
	return StageType(j.Bucket, j.Stage)
}

func (j StageJob) Marshal() (string, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func UnmarshalStageJob(payload string) (*StageJob, error) {
	job := new(StageJob)
	if err := json.Unmarshal([]byte(payload), job); err != nil {
		return nil, err
	}
	return job, nil
}
