package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/CalosDev/aquitado-ops/internal/engine"
	"github.com/CalosDev/aquitado-ops/internal/health"
)

// Component and overall statuses, ordered by severity.
const (
	StatusUp       = "up"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

const (
	DefaultPoolDegradedRatio = 0.75
	DefaultPoolDownRatio     = 0.90
)

var severity = map[string]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}

// requiredTables are the tables the inbound pipeline writes on every message.
var requiredTables = []string{"conversations", "messages"}

type DBChecker interface {
	Ping(ctx context.Context) error
	SchemaReady(ctx context.Context, tables ...string) (bool, error)
	PoolSaturation() float64
}

type HealthSource interface {
	Snapshot(thresholds map[string]float64) []health.Report
}

type BreakerSource interface {
	States() []engine.CircuitState
}

type Component struct {
	Status  string          `json:"status"`
	Detail  string          `json:"detail,omitempty"`
	Reports []health.Report `json:"reports,omitempty"`
}

type DatabaseComponent struct {
	Status         string  `json:"status"`
	Detail         string  `json:"detail,omitempty"`
	PoolSaturation float64 `json:"pool_saturation"`
}

type Dashboard struct {
	Overall     string                `json:"overall"`
	GeneratedAt time.Time             `json:"generated_at"`
	Database    DatabaseComponent     `json:"database"`
	AI          Component             `json:"ai"`
	WhatsApp    Component             `json:"whatsapp"`
	Circuits    []engine.CircuitState `json:"circuits"`
}

type Config struct {
	Thresholds        map[string]float64
	PoolDegradedRatio float64
	PoolDownRatio     float64
}

// Composer assembles the operational dashboard from the live signal sources.
// Every read is point-in-time and side-effect free.
type Composer struct {
	db       DBChecker
	tracker  HealthSource
	breakers BreakerSource
	cfg      Config
	logger   *slog.Logger
}

func NewComposer(db DBChecker, tracker HealthSource, breakers BreakerSource, cfg Config, logger *slog.Logger) *Composer {
	if cfg.PoolDegradedRatio <= 0 {
		cfg.PoolDegradedRatio = DefaultPoolDegradedRatio
	}
	if cfg.PoolDownRatio <= 0 {
		cfg.PoolDownRatio = DefaultPoolDownRatio
	}
	return &Composer{db: db, tracker: tracker, breakers: breakers, cfg: cfg, logger: logger}
}

// Dashboard composes the current operational view. It never returns an error
// for an unhealthy system; failures of the underlying checks are folded into
// the component statuses.
func (c *Composer) Dashboard(ctx context.Context) *Dashboard {
	reports := c.tracker.Snapshot(c.cfg.Thresholds)

	d := &Dashboard{
		GeneratedAt: time.Now().UTC(),
		Database:    c.databaseComponent(ctx),
		AI:          groupComponent(reports, "ai"),
		WhatsApp:    groupComponent(reports, "whatsapp"),
	}
	if c.breakers != nil {
		d.Circuits = c.breakers.States()
	}

	d.Overall = worstOf(d.Database.Status, d.AI.Status, d.WhatsApp.Status)
	if d.Overall != StatusUp {
		c.logger.Warn("dashboard reports degraded system",
			"overall", d.Overall,
			"database", d.Database.Status,
			"ai", d.AI.Status,
			"whatsapp", d.WhatsApp.Status,
		)
	}
	return d
}

func (c *Composer) databaseComponent(ctx context.Context) DatabaseComponent {
	comp := DatabaseComponent{Status: StatusUp, PoolSaturation: c.db.PoolSaturation()}

	if err := c.db.Ping(ctx); err != nil {
		comp.Status = StatusDown
		comp.Detail = "ping failed: " + err.Error()
		return comp
	}

	ready, err := c.db.SchemaReady(ctx, requiredTables...)
	if err != nil {
		comp.Status = StatusDown
		comp.Detail = "schema check failed: " + err.Error()
		return comp
	}
	if !ready {
		comp.Status = StatusDown
		comp.Detail = "required tables missing"
		return comp
	}

	switch {
	case comp.PoolSaturation >= c.cfg.PoolDownRatio:
		comp.Status = StatusDown
		comp.Detail = "connection pool exhausted"
	case comp.PoolSaturation >= c.cfg.PoolDegradedRatio:
		comp.Status = StatusDegraded
		comp.Detail = "connection pool under pressure"
	}
	return comp
}

// groupComponent folds the tracker reports of one dependency into a status:
// no samples is degraded (nothing observed yet), an unhealthy entry whose
// error rate crossed the unhealthy cutoff is down, any other unhealthy entry
// is degraded.
func groupComponent(reports []health.Report, dependency string) Component {
	comp := Component{Status: StatusUp}
	for _, r := range reports {
		if r.Dependency != dependency {
			continue
		}
		comp.Reports = append(comp.Reports, r)
		if r.Healthy {
			continue
		}
		if r.ErrorRatePct >= 20 {
			comp.Status = StatusDown
			comp.Detail = "high error rate on " + r.Key
		} else if comp.Status != StatusDown {
			comp.Status = StatusDegraded
			comp.Detail = "slow responses on " + r.Key
		}
	}
	if len(comp.Reports) == 0 {
		comp.Status = StatusDegraded
		comp.Detail = "no_samples"
	}
	return comp
}

func worstOf(statuses ...string) string {
	worst := StatusUp
	for _, s := range statuses {
		if severity[s] > severity[worst] {
			worst = s
		}
	}
	return worst
}
