package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/report"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// ReportCache stores serialized report payloads. Implemented by the redis
// wrapper; a nil cache disables caching.
type ReportCache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// CacheMissFunc distinguishes a miss from a cache failure.
type CacheMissFunc func(error) bool

// ReportService produces aging and throughput reports over the ticket store.
type ReportService struct {
	tickets     repository.TicketRepository
	cache       ReportCache
	isCacheMiss CacheMissFunc
	metrics     *observability.Metrics
	logger      *zap.Logger
	windowSize  int
	cacheTTL    time.Duration
	now         func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	TicketRepo  repository.TicketRepository
	Cache       ReportCache
	IsCacheMiss CacheMissFunc
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	WindowSize  int
	CacheTTL    time.Duration
	Now         func() time.Time
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	windowSize := deps.WindowSize
	if windowSize <= 0 {
		windowSize = report.DefaultWindowSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		tickets:     deps.TicketRepo,
		cache:       deps.Cache,
		isCacheMiss: deps.IsCacheMiss,
		metrics:     deps.Metrics,
		logger:      logger,
		windowSize:  windowSize,
		cacheTTL:    deps.CacheTTL,
		now:         now,
	}
}

// AgingQueryParams filter the ticket population for aging reports.
type AgingQueryParams struct {
	ProjectID      string
	IterationID    *string
	StateNames     []string
	Priorities     []domain.TicketPriority
	AssigneeIDs    []string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	IncludeClosed  bool
	GroupDimension report.GroupDimension
}

// TicketGroup is one grouped slice of a bucket.
type TicketGroup struct {
	Key     string          `json:"key"`
	Tickets []domain.Ticket `json:"tickets"`
}

// AgeingBucket is one fixed age bucket with its grouped tickets.
type AgeingBucket struct {
	BucketLabel report.AgeBucket `json:"bucket_label"`
	Groups      []TicketGroup    `json:"groups"`
}

// AgedTicketView pairs a ticket with its computed age for the flat summary.
type AgedTicketView struct {
	Ticket domain.Ticket `json:"ticket"`
	Age    int           `json:"age_in_days"`
}

// AgingSummary is the flattened aging report variant.
type AgingSummary struct {
	GroupKeys    []string                    `json:"group_keys"`
	Grouped      map[string][]AgedTicketView `json:"grouped"`
	AverageAge   float64                     `json:"average_age"`
	MaxAge       int                         `json:"max_age"`
	MinAge       int                         `json:"min_age"`
	TotalTickets int                         `json:"total_tickets"`
}

// ThroughputQueryParams drive the throughput report.
type ThroughputQueryParams struct {
	ProjectID      string
	IterationID    *string
	StateNames     []string
	Priorities     []domain.TicketPriority
	AssigneeIDs    []string
	From           time.Time
	To             time.Time
	Granularity    report.Granularity
	GroupDimension report.GroupDimension
	WindowSize     int
}

// PeriodThroughput is one period's completion count, in period order.
type PeriodThroughput struct {
	Period     report.Period `json:"period"`
	Throughput int           `json:"throughput"`
}

// ThroughputReport is the windowed aggregation result.
type ThroughputReport struct {
	FromDate    time.Time             `json:"from_date"`
	ToDate      time.Time             `json:"to_date"`
	Granularity report.Granularity    `json:"granularity"`
	GroupBy     report.GroupDimension `json:"group_by"`
	Periods     []PeriodThroughput    `json:"periods"`
}

// GetAgingBucketsReport fetches the filtered population, partitions it into
// the six fixed age buckets, and groups each bucket by the requested
// dimension. Bucket order is fixed; group order is first-seen.
func (s *ReportService) GetAgingBucketsReport(ctx context.Context, params AgingQueryParams) ([]AgeingBucket, error) {
	if params.ProjectID == "" {
		return nil, apperrors.NewValidationError("project id required", nil)
	}

	var cached []AgeingBucket
	cacheKey := s.agingCacheKey("buckets", params)
	if s.fromCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	tickets, err := s.tickets.ListWithFilter(ctx, agingFilter(params))
	if err != nil {
		return nil, err
	}

	now := s.now()
	buckets := report.IntoBuckets(tickets, now)

	result := make([]AgeingBucket, 0, len(report.BucketLabels))
	for _, label := range report.BucketLabels {
		grouped := report.GroupTickets(buckets[label], params.GroupDimension)
		groups := make([]TicketGroup, 0, grouped.Len())
		for _, key := range grouped.Keys {
			members := grouped.Get(key)
			tickets := make([]domain.Ticket, 0, len(members))
			for _, t := range members {
				tickets = append(tickets, *t)
			}
			groups = append(groups, TicketGroup{Key: key, Tickets: tickets})
		}
		result = append(result, AgeingBucket{BucketLabel: label, Groups: groups})
	}

	s.metrics.RecordReport("aging_buckets")
	s.toCache(ctx, cacheKey, result)
	return result, nil
}

// GetAgingSummary produces the flattened aging variant: every matching
// ticket with its age, grouped by dimension, with population statistics.
// Tickets are ordered oldest first.
func (s *ReportService) GetAgingSummary(ctx context.Context, params AgingQueryParams) (*AgingSummary, error) {
	if params.ProjectID == "" {
		return nil, apperrors.NewValidationError("project id required", nil)
	}

	var cached AgingSummary
	cacheKey := s.agingCacheKey("summary", params)
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	tickets, err := s.tickets.ListWithFilter(ctx, agingFilter(params))
	if err != nil {
		return nil, err
	}

	now := s.now()
	aged := report.AgeTickets(tickets, now)
	sort.SliceStable(aged, func(i, j int) bool { return aged[i].Age > aged[j].Age })

	keyFn := report.TicketKeyFunc(params.GroupDimension)
	grouped := report.GroupBy(aged, func(a report.AgedTicket) string { return keyFn(a.Ticket) })

	summary := &AgingSummary{
		GroupKeys:    grouped.Keys,
		Grouped:      make(map[string][]AgedTicketView, grouped.Len()),
		TotalTickets: len(aged),
	}
	for _, key := range grouped.Keys {
		views := make([]AgedTicketView, 0, len(grouped.Get(key)))
		for _, a := range grouped.Get(key) {
			views = append(views, AgedTicketView{Ticket: *a.Ticket, Age: a.Age})
		}
		summary.Grouped[key] = views
	}

	if len(aged) > 0 {
		total := 0
		summary.MaxAge = aged[0].Age
		summary.MinAge = aged[0].Age
		for _, a := range aged {
			total += a.Age
			if a.Age > summary.MaxAge {
				summary.MaxAge = a.Age
			}
			if a.Age < summary.MinAge {
				summary.MinAge = a.Age
			}
		}
		summary.AverageAge = float64(total) / float64(len(aged))
	}

	s.metrics.RecordReport("aging_summary")
	s.toCache(ctx, cacheKey, summary)
	return summary, nil
}

// GetThroughputReport generates the periods for the range, then streams the
// completed-ticket population in windows, counting completions per period.
func (s *ReportService) GetThroughputReport(ctx context.Context, params ThroughputQueryParams) (*ThroughputReport, error) {
	if params.ProjectID == "" {
		return nil, apperrors.NewValidationError("project id required", nil)
	}

	periods, err := report.GeneratePeriods(params.From, params.To, params.Granularity)
	if err != nil {
		return nil, err
	}

	var cached ThroughputReport
	cacheKey := s.throughputCacheKey(params)
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	windowSize := params.WindowSize
	if windowSize <= 0 {
		windowSize = s.windowSize
	}

	src := &ticketWindowSource{repo: s.tickets, filter: throughputFilter(params)}
	counts, err := report.AccumulateThroughput(ctx, src, periods, windowSize)
	if err != nil {
		return nil, err
	}

	result := &ThroughputReport{
		FromDate:    periods[0].Start,
		ToDate:      periods[len(periods)-1].End,
		Granularity: params.Granularity,
		GroupBy:     params.GroupDimension,
		Periods:     make([]PeriodThroughput, 0, len(counts.Ordered)),
	}
	for _, p := range counts.Ordered {
		result.Periods = append(result.Periods, PeriodThroughput{Period: p, Throughput: counts.Count(p)})
	}

	s.metrics.RecordReport("throughput")
	s.toCache(ctx, cacheKey, result)
	return result, nil
}

// ticketWindowSource adapts the repository's windowed fetch to the
// aggregator's source interface.
type ticketWindowSource struct {
	repo   repository.TicketRepository
	filter repository.TicketFilter
}

func (s *ticketWindowSource) NextWindow(ctx context.Context, cursor string, limit int) ([]domain.Ticket, string, bool, error) {
	return s.repo.ListCompletedWindowed(ctx, s.filter, cursor, limit)
}

func agingFilter(params AgingQueryParams) repository.TicketFilter {
	return repository.TicketFilter{
		ProjectID:        params.ProjectID,
		IterationID:      params.IterationID,
		StateNames:       params.StateNames,
		Priorities:       params.Priorities,
		AssigneeIDs:      params.AssigneeIDs,
		CreatedFrom:      params.CreatedFrom,
		CreatedTo:        params.CreatedTo,
		IncludeCompleted: params.IncludeClosed,
	}
}

func throughputFilter(params ThroughputQueryParams) repository.TicketFilter {
	from := params.From
	to := params.To
	return repository.TicketFilter{
		ProjectID:     params.ProjectID,
		IterationID:   params.IterationID,
		StateNames:    params.StateNames,
		Priorities:    params.Priorities,
		AssigneeIDs:   params.AssigneeIDs,
		CompletedOnly: true,
		CompletedFrom: &from,
		CompletedTo:   &to,
	}
}

func (s *ReportService) agingCacheKey(kind string, params AgingQueryParams) string {
	parts := []string{
		"report", "aging", kind, params.ProjectID,
		strings.Join(params.StateNames, ","),
		strings.Join(params.AssigneeIDs, ","),
		string(params.GroupDimension),
		fmt.Sprintf("closed=%t", params.IncludeClosed),
	}
	if params.IterationID != nil {
		parts = append(parts, *params.IterationID)
	}
	for _, p := range params.Priorities {
		parts = append(parts, string(p))
	}
	if params.CreatedFrom != nil {
		parts = append(parts, params.CreatedFrom.Format(time.RFC3339))
	}
	if params.CreatedTo != nil {
		parts = append(parts, params.CreatedTo.Format(time.RFC3339))
	}
	return strings.Join(parts, ":")
}

func (s *ReportService) throughputCacheKey(params ThroughputQueryParams) string {
	parts := []string{
		"report", "throughput", params.ProjectID,
		params.From.Format("2006-01-02"), params.To.Format("2006-01-02"),
		string(params.Granularity), string(params.GroupDimension),
		strings.Join(params.StateNames, ","),
		strings.Join(params.AssigneeIDs, ","),
	}
	if params.IterationID != nil {
		parts = append(parts, *params.IterationID)
	}
	for _, p := range params.Priorities {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ":")
}

// fromCache loads a cached payload into dst. Cache failures degrade to a
// recompute and are logged at debug.
func (s *ReportService) fromCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	raw, err := s.cache.GetString(ctx, key)
	if err != nil {
		if s.isCacheMiss == nil || !s.isCacheMiss(err) {
			s.logger.Debug("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Debug("report cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *ReportService) toCache(ctx context.Context, key string, value any) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.SetString(ctx, key, string(raw), s.cacheTTL); err != nil {
		s.logger.Debug("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
