// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"bookshelf/internal/books"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment defines a chaos engineering test against a book service.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	// Samples is how many times every steady-state metric is observed while
	// the faults are active. Zero means once.
	Samples  int
	Interval time.Duration
}

// Metric defines a measurable system property
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action represents a fault injection or recovery action
type Action struct {
	Type    string // enable-fault, disable-fault, concurrent-requests
	Target  string
	Execute func(context.Context) error
}

// Assertion validates experiment outcome
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// ExperimentResult captures experiment execution data
type ExperimentResult struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates chaos experiments against a book service whose store
// is wrapped by the engine's injector.
type Engine struct {
	tracer      trace.Tracer
	service     books.Service
	injector    *Injector
	experiments []Experiment
	results     []ExperimentResult
	mu          sync.Mutex
}

func NewEngine(service books.Service, injector *Injector) *Engine {
	return &Engine{
		tracer:   otel.Tracer("bookshelf/chaos"),
		service:  service,
		injector: injector,
	}
}

// RegisterExperiment adds an experiment to the suite.
func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Results returns the results of every experiment run so far.
func (e *Engine) Results() []ExperimentResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExperimentResult(nil), e.results...)
}

// RunExperiment executes a single chaos experiment. Rollback actions always
// run once the method has started.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*ExperimentResult, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
		),
	)
	defer span.End()

	result := &ExperimentResult{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	// Phase 1: Validate steady state
	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.SteadyStateValid = false
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	// Phase 2: Inject chaos
	span.AddEvent("injecting_chaos")
	defer e.rollback(ctx, span, exp.Rollback)
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	// Phase 3: Observe system behavior
	span.AddEvent("observing_system")
	if err := e.observe(ctx, exp, result); err != nil {
		return result, err
	}

	// Phase 4: Validate assertions
	span.AddEvent("validating_assertions")
	result.HypothesisHeld = e.validateAssertions(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)

	return result, nil
}

func (e *Engine) observe(ctx context.Context, exp Experiment, result *ExperimentResult) error {
	samples := exp.Samples
	if samples <= 0 {
		samples = 1
	}

	recoveryStart := time.Time{}
	systemRecovered := false

	for i := 0; i < samples; i++ {
		if i > 0 && exp.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exp.Interval):
			}
		}

		for _, metric := range exp.SteadyState {
			value, err := metric.Query(ctx)
			if err != nil {
				result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
					Timestamp: time.Now(),
					Error:     err.Error(),
					Component: metric.Name,
				})
				continue
			}

			result.Observations[metric.Name] = append(
				result.Observations[metric.Name],
				DataPoint{Timestamp: time.Now(), Value: value},
			)

			if !evaluateThreshold(value, metric.Threshold) {
				if recoveryStart.IsZero() {
					recoveryStart = time.Now()
				}
				result.Violations = append(result.Violations, MetricViolation{
					MetricName: metric.Name,
					Expected:   metric.Threshold.Value,
					Actual:     value,
					Timestamp:  time.Now(),
				})
			} else if !recoveryStart.IsZero() && !systemRecovered {
				mttr := time.Since(recoveryStart)
				result.MTTR = &mttr
				systemRecovered = true
			}
		}
	}
	return nil
}

func (e *Engine) rollback(ctx context.Context, span trace.Span, actions []Action) {
	span.AddEvent("rolling_back")
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

// validateAssertions checks every assertion against the final observation of
// its metric and records the messages of those that failed.
func (e *Engine) validateAssertions(assertions []Assertion, result *ExperimentResult) bool {
	for _, assertion := range assertions {
		observations := result.Observations[assertion.Metric]
		if len(observations) == 0 {
			result.FailedAssertions = append(result.FailedAssertions, assertion.Message+" (no observations)")
			continue
		}

		finalValue := observations[len(observations)-1].Value
		if !assertion.Condition(finalValue) {
			result.FailedAssertions = append(result.FailedAssertions, assertion.Message)
		}
	}

	return len(result.FailedAssertions) == 0
}

// GameDay orchestrates a series of chaos experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	// Pause is the wait between experiments.
	Pause time.Duration
}

// ExecuteGameDay runs every scenario in order and writes a report to w. It
// returns an error if any hypothesis was violated.
func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay, w io.Writer) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(
			attribute.String("gameday.name", gameDay.Name),
		),
	)
	defer span.End()

	fmt.Fprintf(w, "Starting game day: %s\n", gameDay.Name)
	fmt.Fprintf(w, "Date: %s\n", gameDay.Date.Format(time.RFC3339))

	violated := 0
	for i, scenario := range gameDay.Scenarios {
		fmt.Fprintf(w, "\nExperiment %d/%d: %s\n", i+1, len(gameDay.Scenarios), scenario.Name)
		fmt.Fprintf(w, "Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			fmt.Fprintf(w, "Experiment failed: %v\n", err)
			violated++
			continue
		}

		printExperimentResult(w, result)
		if !result.HypothesisHeld {
			violated++
		}

		if gameDay.Pause > 0 && i < len(gameDay.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}
	}

	span.SetAttributes(attribute.Int("experiments.violated", violated))
	if violated > 0 {
		return fmt.Errorf("%d of %d experiments did not hold", violated, len(gameDay.Scenarios))
	}
	return nil
}

func printExperimentResult(w io.Writer, result *ExperimentResult) {
	if result.HypothesisHeld {
		fmt.Fprintf(w, "Hypothesis held - system behaved as expected\n")
	} else {
		fmt.Fprintf(w, "Hypothesis violated - unexpected behavior observed\n")
		for _, msg := range result.FailedAssertions {
			fmt.Fprintf(w, "   - %s\n", msg)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Fprintf(w, "Violations detected: %d\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Fprintf(w, "   - %s: expected %.2f, got %.2f\n", v.MetricName, v.Expected, v.Actual)
		}
	}

	if result.MTTR != nil {
		fmt.Fprintf(w, "MTTR: %s\n", *result.MTTR)
	}

	fmt.Fprintf(w, "Duration: %s\n", result.Duration)
}
