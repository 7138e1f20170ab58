package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeCampaignSend = "campaign:send"
)

// Queue names, matching the worker's weighted queue config
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// CampaignPayload identifies one run of a campaign
type CampaignPayload struct {
	CampaignID string    `json:"campaign_id"`
	RunAt      time.Time `json:"run_at"`
}

// NewCampaignSendTask creates a task delivering a campaign run
func NewCampaignSendTask(campaignID string, runAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(CampaignPayload{
		CampaignID: campaignID,
		RunAt:      runAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCampaignSend, payload), nil
}

// CampaignTaskID dedupes enqueues of the same run
func CampaignTaskID(campaignID string, runAt time.Time) string {
	return fmt.Sprintf("%s:%d", campaignID, runAt.Unix())
}

// ParseCampaignPayload parses task payload from Asynq task
func ParseCampaignPayload(task *asynq.Task) (CampaignPayload, error) {
	var payload CampaignPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}
