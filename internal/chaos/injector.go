// internal/chaos/injector.go
package chaos

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fault names a failure the injector can trigger inside a wrapped store.
type Fault string

const (
	// FaultDropAppend silently discards appended records.
	FaultDropAppend Fault = "drop-append"
	// FaultPanicAppend panics when a record is appended.
	FaultPanicAppend Fault = "panic-append"
	// FaultPanicFind panics on id lookups.
	FaultPanicFind Fault = "panic-find"
)

// KnownFaults lists every fault in a stable order.
var KnownFaults = []Fault{FaultDropAppend, FaultPanicAppend, FaultPanicFind}

// ParseFault validates a fault name.
func ParseFault(name string) (Fault, error) {
	for _, f := range KnownFaults {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown fault %q", name)
}

// Injector holds the faults that are currently enabled and the blast radius
// (probability in [0,1]) with which each one fires.
type Injector struct {
	mu     sync.RWMutex
	faults map[Fault]float64
	roll   func() float64
	fired  metric.Int64Counter
	logger *slog.Logger
}

// InjectorOption configures an Injector.
type InjectorOption func(*Injector)

// WithRoll replaces the random source. roll must return values in [0,1).
func WithRoll(roll func() float64) InjectorOption {
	return func(i *Injector) { i.roll = roll }
}

func WithInjectorLogger(logger *slog.Logger) InjectorOption {
	return func(i *Injector) { i.logger = logger }
}

func NewInjector(opts ...InjectorOption) *Injector {
	i := &Injector{
		faults: make(map[Fault]float64),
		roll:   rand.Float64,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}

	fired, err := otel.Meter("bookshelf/chaos").Int64Counter("bookshelf.chaos.faults",
		metric.WithDescription("Faults fired by the chaos injector"),
	)
	if err != nil {
		i.logger.Warn("failed to create chaos fault counter", "error", err)
	}
	i.fired = fired
	return i
}

// Enable turns a fault on with the given blast radius.
func (i *Injector) Enable(f Fault, blastRadius float64) error {
	if _, err := ParseFault(string(f)); err != nil {
		return err
	}
	if blastRadius < 0 || blastRadius > 1 {
		return fmt.Errorf("blast radius for %s must be within [0,1], got %v", f, blastRadius)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.faults[f] = blastRadius
	i.logger.Warn("chaos fault enabled", "fault", string(f), "blast_radius", blastRadius)
	return nil
}

func (i *Injector) Disable(f Fault) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.faults[f]; ok {
		delete(i.faults, f)
		i.logger.Info("chaos fault disabled", "fault", string(f))
	}
}

// Reset disables every fault.
func (i *Injector) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.faults = make(map[Fault]float64)
}

// Active returns the enabled faults, sorted by name.
func (i *Injector) Active() []Fault {
	i.mu.RLock()
	defer i.mu.RUnlock()
	active := make([]Fault, 0, len(i.faults))
	for f := range i.faults {
		active = append(active, f)
	}
	sort.Slice(active, func(a, b int) bool { return active[a] < active[b] })
	return active
}

// Fires reports whether f triggers on this call.
func (i *Injector) Fires(f Fault) bool {
	i.mu.RLock()
	radius, ok := i.faults[f]
	i.mu.RUnlock()
	if !ok || radius == 0 {
		return false
	}
	if i.roll() >= radius {
		return false
	}

	if i.fired != nil {
		i.fired.Add(context.Background(), 1, metric.WithAttributes(attribute.String("fault", string(f))))
	}
	return true
}
