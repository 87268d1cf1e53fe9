package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/report"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util"
)

// ReportsHandler serves aging and throughput report endpoints.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// AgingBuckets GET /reports/tickets/aging.
func (h *ReportsHandler) AgingBuckets(c *fiber.Ctx) error {
	params, err := parseAgingQuery(c)
	if err != nil {
		return err
	}
	buckets, err := h.service.GetAgingBucketsReport(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AgingBucketsResponse{
		ProjectID: params.ProjectID,
		GroupBy:   params.GroupDimension,
		Buckets:   buckets,
	}})
}

// AgingSummary GET /reports/tickets/aging/summary.
func (h *ReportsHandler) AgingSummary(c *fiber.Ctx) error {
	params, err := parseAgingQuery(c)
	if err != nil {
		return err
	}
	summary, err := h.service.GetAgingSummary(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AgingSummaryResponse{
		ProjectID: params.ProjectID,
		GroupBy:   params.GroupDimension,
		Summary:   *summary,
	}})
}

// Throughput GET /reports/tickets/throughput.
func (h *ReportsHandler) Throughput(c *fiber.Ctx) error {
	projectID := c.Query("project_id")
	if projectID == "" {
		return apperrors.NewValidationError("project_id required", nil)
	}

	from := parseDateQuery(c.Query("from"))
	to := parseDateQuery(c.Query("to"))
	if from == nil || to == nil {
		return apperrors.NewValidationError("from and to dates required (YYYY-MM-DD)", nil)
	}

	granularity, ok := report.ParseGranularity(strings.ToUpper(c.Query("granularity", string(report.GranularityWeek))))
	if !ok {
		return apperrors.NewValidationError("unknown granularity", map[string]any{
			"granularity": c.Query("granularity"),
		})
	}

	params := service.ThroughputQueryParams{
		ProjectID:      projectID,
		IterationID:    optionalQuery(c, "iteration_id"),
		StateNames:     splitQuery(c.Query("states")),
		Priorities:     parsePriorities(c.Query("priorities")),
		AssigneeIDs:    splitQuery(c.Query("assignees")),
		From:           *from,
		To:             *to,
		Granularity:    granularity,
		GroupDimension: parseGroupDimension(c.Query("group_by")),
		WindowSize:     parsePositiveInt(c.Query("window_size"), 0),
	}

	result, err := h.service.GetThroughputReport(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ThroughputResponse{
		ProjectID:   projectID,
		FromDate:    result.FromDate,
		ToDate:      result.ToDate,
		Granularity: result.Granularity,
		GroupBy:     result.GroupBy,
		Periods:     result.Periods,
	}})
}

func parseAgingQuery(c *fiber.Ctx) (service.AgingQueryParams, error) {
	projectID := c.Query("project_id")
	if projectID == "" {
		return service.AgingQueryParams{}, apperrors.NewValidationError("project_id required", nil)
	}
	params := service.AgingQueryParams{
		ProjectID:      projectID,
		IterationID:    optionalQuery(c, "iteration_id"),
		StateNames:     splitQuery(c.Query("states")),
		Priorities:     parsePriorities(c.Query("priorities")),
		AssigneeIDs:    splitQuery(c.Query("assignees")),
		CreatedFrom:    parseDateQuery(c.Query("created_from")),
		CreatedTo:      parseDateQuery(c.Query("created_to")),
		IncludeClosed:  c.QueryBool("include_closed", false),
		GroupDimension: parseGroupDimension(c.Query("group_by")),
	}
	return params, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	return &val
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePriorities(val string) []domain.TicketPriority {
	parts := splitQuery(val)
	if len(parts) == 0 {
		return nil
	}
	out := make([]domain.TicketPriority, 0, len(parts))
	for _, part := range parts {
		out = append(out, domain.TicketPriority(strings.ToUpper(part)))
	}
	return out
}

func parseGroupDimension(val string) report.GroupDimension {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case string(report.GroupByStatus):
		return report.GroupByStatus
	case string(report.GroupByPriority):
		return report.GroupByPriority
	default:
		return report.GroupByAssignee
	}
}

func parseDateQuery(val string) *time.Time {
	if val == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

func parsePositiveInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
