package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/service"
)

// SLAMonitor periodically scans in-progress transitions and reacts to SLA
// deadlines: approaching deadlines are announced, breached ones are
// escalated when auto escalation is enabled.
type SLAMonitor struct {
	transitions *service.TransitionService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.SLAConfig
	now         func() time.Time
}

// NewSLAMonitor creates the monitor.
func NewSLAMonitor(transitions *service.TransitionService, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.SLAConfig) *SLAMonitor {
	return &SLAMonitor{
		transitions: transitions,
		dispatcher:  dispatcher,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run blocks until ctx is cancelled, scanning on the configured interval.
func (m *SLAMonitor) Run(ctx context.Context) {
	interval := m.cfg.MonitorInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started",
		zap.Duration("interval", interval),
		zap.Bool("auto_escalate", m.cfg.AutoEscalate))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

func (m *SLAMonitor) scan(ctx context.Context) {
	lead := time.Duration(m.cfg.LeadTimeSeconds) * time.Second

	breached, err := m.transitions.ListBreachedViolations(ctx)
	if err != nil {
		m.logger.Error("sla monitor: list breached failed", zap.Error(err))
		return
	}
	breachedIDs := make(map[string]struct{}, len(breached))
	for _, h := range breached {
		breachedIDs[h.ID] = struct{}{}
		if !m.cfg.AutoEscalate {
			continue
		}
		if _, err := m.transitions.Escalate(ctx, h.ID); err != nil {
			m.logger.Error("sla monitor: escalate failed",
				zap.String("history_id", h.ID), zap.Error(err))
		}
	}

	approaching, err := m.transitions.ListApproachingViolations(ctx, lead)
	if err != nil {
		m.logger.Error("sla monitor: list approaching failed", zap.Error(err))
		return
	}
	for _, h := range approaching {
		// Already breached entries were handled above.
		if _, ok := breachedIDs[h.ID]; ok {
			continue
		}
		if h.SLADueDate == nil {
			continue
		}
		m.publishApproaching(ctx, h.TicketID, h.ID, h.ToStateName, *h.SLADueDate)
	}
}

func (m *SLAMonitor) publishApproaching(ctx context.Context, ticketID, historyID, toState string, due time.Time) {
	if m.dispatcher == nil {
		return
	}
	event := events.Event{
		Type:      events.EventSLAApproaching,
		TicketID:  ticketID,
		Timestamp: m.now().UTC(),
		Payload: events.SLAApproachingPayload{
			HistoryID:  historyID,
			ToState:    toState,
			SLADueDate: due,
		},
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Error("sla monitor: publish failed", zap.Error(err))
	}
}
