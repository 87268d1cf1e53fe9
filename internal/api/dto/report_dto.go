package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/report"
	"github.com/spec-kit/workflow-service/internal/service"
)

// AgingBucketsResponse wraps the bucketed aging report.
type AgingBucketsResponse struct {
	ProjectID string                 `json:"project_id"`
	GroupBy   report.GroupDimension  `json:"group_by"`
	Buckets   []service.AgeingBucket `json:"buckets"`
}

// AgingSummaryResponse wraps the flat aging summary.
type AgingSummaryResponse struct {
	ProjectID string                `json:"project_id"`
	GroupBy   report.GroupDimension `json:"group_by"`
	Summary   service.AgingSummary  `json:"summary"`
}

// ThroughputResponse wraps the windowed throughput report.
type ThroughputResponse struct {
	ProjectID   string                     `json:"project_id"`
	FromDate    time.Time                  `json:"from_date"`
	ToDate      time.Time                  `json:"to_date"`
	Granularity report.Granularity         `json:"granularity"`
	GroupBy     report.GroupDimension      `json:"group_by"`
	Periods     []service.PeriodThroughput `json:"periods"`
}
