package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/examvm/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "seed [fixture.yaml]",
		Short: "Load exams from a YAML fixture",
		Long: "Load exams from a YAML fixture. Relative times are resolved against now.\n" +
			"With --demo the built-in fixture of six exams starting tomorrow is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f *seed.File
			switch {
			case demo && len(args) > 0:
				return errors.New("pass either a fixture file or --demo, not both")
			case demo:
				f = seed.Demo()
			case len(args) == 1:
				var err error
				if f, err = seed.ParseFile(args[0]); err != nil {
					return err
				}
			default:
				return errors.New("a fixture file or --demo is required")
			}

			exams, err := f.Exams(time.Now())
			if err != nil {
				return fmt.Errorf("invalid fixture: %w", err)
			}

			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := seed.Load(cmd.Context(), st, exams)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d exams.\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "Load the built-in demo fixture")
	return cmd
}
