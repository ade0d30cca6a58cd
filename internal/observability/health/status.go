package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the outcome of a check or of the whole monitor.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one dependency. A failing critical check makes the monitor
// unhealthy; any other failure only degrades it.
type Check interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) error
}

// Result is the outcome of one check run.
type Result struct {
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates the results of a monitor run.
type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Result `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
}

// Config configures health monitoring
type Config struct {
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Monitor runs registered checks on demand.
type Monitor struct {
	config    *Config
	logger    *logrus.Logger
	mu        sync.RWMutex
	checks    []Check
	startTime time.Time
}

func NewMonitor(config *Config, logger *logrus.Logger) *Monitor {
	if config == nil {
		config = &Config{Timeout: 2 * time.Second}
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Monitor{
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register adds a check. Checks registered later with the same name replace
// earlier ones.
func (m *Monitor) Register(check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.checks {
		if existing.Name() == check.Name() {
			m.checks[i] = check
			return
		}
	}
	m.checks = append(m.checks, check)
}

// Run executes every check concurrently, each under the configured timeout.
func (m *Monitor) Run(ctx context.Context) *Report {
	m.mu.RLock()
	checks := make([]Check, len(m.checks))
	copy(checks, m.checks)
	m.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.execute(ctx, check)
		}()
	}
	wg.Wait()

	report := &Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Result, len(checks)),
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
	}

	for i, check := range checks {
		result := results[i]
		report.Checks[check.Name()] = result
		if result.Status == StatusHealthy {
			continue
		}

		if check.Critical() {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}

	return report
}

func (m *Monitor) execute(ctx context.Context, check Check) Result {
	started := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	result := Result{Status: StatusHealthy}
	if err := check.Check(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()

		m.logger.WithFields(logrus.Fields{
			"check":    check.Name(),
			"critical": check.Critical(),
		}).WithError(err).Warn("Health check failed")
	}
	result.Duration = time.Since(started)

	return result
}

// funcCheck adapts a plain function to Check
type funcCheck struct {
	name     string
	critical bool
	fn       func(ctx context.Context) error
}

// NewCheck builds a Check from fn.
func NewCheck(name string, critical bool, fn func(ctx context.Context) error) Check {
	return &funcCheck{name: name, critical: critical, fn: fn}
}

func (c *funcCheck) Name() string                    { return c.name }
func (c *funcCheck) Critical() bool                  { return c.critical }
func (c *funcCheck) Check(ctx context.Context) error { return c.fn(ctx) }
