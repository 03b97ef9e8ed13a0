// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bookshelf/internal/books"
)

const probeName = "chaos-probe"

// RegisterExperiments registers all predefined chaos experiments with the engine.
func (e *Engine) RegisterExperiments() {
	e.RegisterExperiment(e.DropAppendExperiment())
	e.RegisterExperiment(e.PanicFindExperiment())
	e.RegisterExperiment(e.ConcurrentAddExperiment(50, 0.5))
}

// DropAppendExperiment verifies that a store losing writes is reported as an
// add failure instead of a phantom success.
func (e *Engine) DropAppendExperiment() Experiment {
	return Experiment{
		Name:       "drop-append",
		Hypothesis: "Adds fail with an internal fault when the store drops writes, and listing stays available",
		SteadyState: []Metric{
			{Name: "add_success", Query: e.addSucceeds, Threshold: Threshold{Operator: "==", Value: 1}},
			{Name: "list_available", Query: e.listAvailable, Threshold: Threshold{Operator: "==", Value: 1}},
		},
		Method: []Action{e.enable(FaultDropAppend, 1)},
		Rollback: []Action{
			e.disable(FaultDropAppend),
		},
		Validation: []Assertion{
			{
				Metric:    "add_success",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Dropped appends should surface as add failures",
			},
			{
				Metric:    "list_available",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Listing should keep working while writes are dropped",
			},
		},
		Samples: 3,
	}
}

// PanicFindExperiment verifies that panics raised by the store never escape a
// service call.
func (e *Engine) PanicFindExperiment() Experiment {
	return Experiment{
		Name:       "panic-find",
		Hypothesis: "Lookups that panic inside the store are contained by the fault boundary",
		SteadyState: []Metric{
			{Name: "lookup_contained", Query: e.lookupContained, Threshold: Threshold{Operator: "==", Value: 1}},
			{Name: "list_available", Query: e.listAvailable, Threshold: Threshold{Operator: "==", Value: 1}},
		},
		Method:   []Action{e.enable(FaultPanicFind, 1)},
		Rollback: []Action{e.disable(FaultPanicFind)},
		Validation: []Assertion{
			{
				Metric:    "lookup_contained",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "No panic should escape a lookup",
			},
			{
				Metric:    "list_available",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Listing does not look books up by id and should keep working",
			},
		},
		Samples: 3,
	}
}

// ConcurrentAddExperiment fires concurrent adds while a share of appends
// panic, then checks that every acknowledged book is retrievable and ids stay
// unique.
func (e *Engine) ConcurrentAddExperiment(concurrency int, blastRadius float64) Experiment {
	var (
		mu    sync.Mutex
		added []string
	)

	return Experiment{
		Name:       "concurrent-add-with-panics",
		Hypothesis: "Every acknowledged add is retrievable and ids stay unique when appends panic under concurrency",
		SteadyState: []Metric{
			{Name: "unique_ids", Query: e.uniqueIDs, Threshold: Threshold{Operator: "==", Value: 1}},
			{
				Name: "lost_books",
				Query: func(ctx context.Context) (float64, error) {
					mu.Lock()
					ids := append([]string(nil), added...)
					mu.Unlock()
					return e.lostBooks(ctx, ids), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			e.enable(FaultPanicAppend, blastRadius),
			{
				Type:   "concurrent-requests",
				Target: "books-service",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					for i := 0; i < concurrency; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							id, err := e.service.AddBook(ctx, probePayload(fmt.Sprintf("%s %d", probeName, i)))
							if err != nil {
								return
							}
							mu.Lock()
							added = append(added, id)
							mu.Unlock()
						}(i)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Rollback: []Action{
			e.disable(FaultPanicAppend),
			{
				Type:   "cleanup",
				Target: "books-service",
				Execute: func(ctx context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					var errs []error
					for _, id := range added {
						if err := e.service.DeleteBook(ctx, id); err != nil {
							errs = append(errs, err)
						}
					}
					added = nil
					return errors.Join(errs...)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "unique_ids",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Book ids should stay unique",
			},
			{
				Metric:    "lost_books",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "Every acknowledged add should be retrievable",
			},
		},
	}
}

func (e *Engine) enable(f Fault, blastRadius float64) Action {
	return Action{
		Type:   "enable-fault",
		Target: string(f),
		Execute: func(context.Context) error {
			return e.injector.Enable(f, blastRadius)
		},
	}
}

func (e *Engine) disable(f Fault) Action {
	return Action{
		Type:   "disable-fault",
		Target: string(f),
		Execute: func(context.Context) error {
			e.injector.Disable(f)
			return nil
		},
	}
}

func probePayload(name string) books.Payload {
	return books.Payload{Name: &name, Publisher: "chaos", PageCount: 1}
}

// addSucceeds adds and removes a probe book. It reports 1 when the add was
// acknowledged and 0 when it failed with an internal fault.
func (e *Engine) addSucceeds(ctx context.Context) (float64, error) {
	id, err := e.service.AddBook(ctx, probePayload(probeName))
	if errors.Is(err, books.ErrAddFailed) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := e.service.DeleteBook(ctx, id); err != nil {
		return 1, fmt.Errorf("remove probe book %s: %w", id, err)
	}
	return 1, nil
}

func (e *Engine) listAvailable(ctx context.Context) (float64, error) {
	if _, err := e.service.ListBooks(ctx, books.Filter{}); err != nil {
		return 0, nil
	}
	return 1, nil
}

// lookupContained reports 0 when a lookup lets a panic escape.
func (e *Engine) lookupContained(ctx context.Context) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = 0
		}
	}()
	_, _ = e.service.GetBook(ctx, probeName)
	return 1, nil
}

func (e *Engine) uniqueIDs(ctx context.Context) (float64, error) {
	listings, err := e.service.ListBooks(ctx, books.Filter{})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if _, dup := seen[l.ID]; dup {
			return 0, nil
		}
		seen[l.ID] = struct{}{}
	}
	return 1, nil
}

// lostBooks counts acknowledged ids that are no longer listed.
func (e *Engine) lostBooks(ctx context.Context, ids []string) float64 {
	listings, err := e.service.ListBooks(ctx, books.Filter{})
	if err != nil {
		return float64(len(ids))
	}
	present := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		present[l.ID] = struct{}{}
	}
	lost := 0
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			lost++
		}
	}
	return float64(lost)
}
