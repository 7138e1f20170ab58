// Package metrics aggregates the dashboard's headline numbers
package metrics

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/castline-dev/castline/internal/models"
)

// Dashboard is the summary shown on the dashboard landing page
type Dashboard struct {
	Contacts           int64            `json:"contacts"`
	SubscribedContacts int64            `json:"subscribed_contacts"`
	Segments           int64            `json:"segments"`
	Tags               int64            `json:"tags"`
	Campaigns          int64            `json:"campaigns"`
	CampaignsByStatus  map[string]int64 `json:"campaigns_by_status"`
	TotalDelivered     int64            `json:"total_delivered"`
}

// Service computes dashboard metrics
type Service struct {
	db *gorm.DB
}

// NewService creates a new metrics service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Dashboard computes the current summary
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{CampaignsByStatus: map[string]int64{
		models.CampaignStatusDraft:     0,
		models.CampaignStatusScheduled: 0,
		models.CampaignStatusSending:   0,
		models.CampaignStatusSent:      0,
	}}

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"contacts", db.Model(&models.Contact{}), &d.Contacts},
		{"subscribed contacts", db.Model(&models.Contact{}).Where("status = ?", models.ContactStatusSubscribed), &d.SubscribedContacts},
		{"segments", db.Model(&models.Segment{}), &d.Segments},
		{"tags", db.Model(&models.Tag{}), &d.Tags},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}

	var rows []struct {
		Status    string
		Count     int64
		Delivered int64
	}
	err := db.Model(&models.Campaign{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(delivered_count), 0) AS delivered").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaigns: %w", err)
	}

	for _, r := range rows {
		d.CampaignsByStatus[r.Status] = r.Count
		d.Campaigns += r.Count
		d.TotalDelivered += r.Delivered
	}
	return d, nil
}
