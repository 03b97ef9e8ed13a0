// internal/cli/chaos.go
package cli

import (
	"fmt"
	"log/slog"
	"time"

	"bookshelf/internal/books"
	"bookshelf/internal/chaos"

	"github.com/spf13/cobra"
)

func newChaosCmd() *cobra.Command {
	var (
		only  []string
		pause time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Run the chaos game day against an in-process bookshelf",
		Long: `Runs the predefined fault-injection experiments against an in-memory book
service whose store is wrapped by the chaos injector, and prints a report.

The command exits non-zero if any hypothesis does not hold.`,
		Example: `  bookshelf chaos
  bookshelf chaos --experiment drop-append --experiment panic-find`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			injector := chaos.NewInjector(chaos.WithInjectorLogger(slog.Default()))
			svc, err := books.NewService(chaos.NewStore(books.NewMemoryStore(), injector), nil)
			if err != nil {
				return err
			}

			engine := chaos.NewEngine(svc, injector)
			engine.RegisterExperiments()

			scenarios, err := selectExperiments(engine.Experiments(), only)
			if err != nil {
				return err
			}

			return engine.ExecuteGameDay(cmd.Context(), chaos.GameDay{
				Name:      "Bookshelf chaos game day",
				Date:      time.Now(),
				Scenarios: scenarios,
				Pause:     pause,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&only, "experiment", nil, "Run only the named experiments")
	cmd.Flags().DurationVar(&pause, "pause", 0, "Wait between experiments")
	return cmd
}

func selectExperiments(all []chaos.Experiment, names []string) ([]chaos.Experiment, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]chaos.Experiment, len(all))
	for _, exp := range all {
		byName[exp.Name] = exp
	}
	selected := make([]chaos.Experiment, 0, len(names))
	for _, name := range names {
		exp, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown experiment %q", name)
		}
		selected = append(selected, exp)
	}
	return selected, nil
}
