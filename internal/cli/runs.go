package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/pointio"
	"github.com/matzehuels/pairnull/pkg/randomize"
	"github.com/matzehuels/pairnull/pkg/store"
)

// runsCommand creates the run history command.
func (c *CLI) runsCommand() *cobra.Command {
	var backend backendOpts

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse archived runs",
	}
	cmd.PersistentFlags().StringVar(&backend.mongoURI, "mongo-uri", "", "read runs from MongoDB instead of the local run history")

	cmd.AddCommand(c.runsListCommand(&backend))
	cmd.AddCommand(c.runsShowCommand(&backend))

	return cmd
}

// runsListCommand creates the "runs list" subcommand.
func (c *CLI) runsListCommand(backend *backendOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore(cmd.Context(), *backend)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No runs yet")
				printNextStep("Start one with", "pairnull randomize x1.csv x2.csv --mask mask.asc")
				return nil
			}
			fmt.Println(runsTable(recs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "maximum number of runs")

	return cmd
}

func runsTable(recs []*store.Record) string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		converged := 0
		for _, rep := range r.Replicates {
			if rep.State == randomize.StateConverged.String() {
				converged++
			}
		}
		rows[i] = []string{
			r.ID,
			formatRelativeTime(r.CreatedAt),
			fmt.Sprintf("%d × %d", r.N1, r.N2),
			string(r.CRS),
			fmt.Sprintf("%d/%d", converged, len(r.Replicates)),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Run", "Created", "Points", "CRS", "Converged").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 1 || col == 3 {
				return lipgloss.NewStyle().Foreground(colorGray)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		}).
		Render()
}

// runsShowCommand creates the "runs show" subcommand.
func (c *CLI) runsShowCommand(backend *backendOpts) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and optionally export its point sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore(cmd.Context(), *backend)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			results, err := rec.Results()
			if err != nil {
				return err
			}

			fmt.Println(StyleTitle.Render(rec.ID))
			printKeyValue("Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			printKeyValue("Points", fmt.Sprintf("%d × %d", rec.N1, rec.N2))
			printKeyValue("CRS", crsLabel(geo.CRS(rec.CRS)))
			printKeyValue("Options", fmt.Sprintf("bins=%d tol=%g overlap=%g seed=%d strategy=%s",
				rec.Options.Bins, rec.Options.Tolerance, rec.Options.Overlap, rec.Options.Seed, rec.Options.Strategy))
			for _, r := range results {
				fmt.Println()
				printKeyValue("Replicate", r.RunID)
				printKeyValue("State", r.State.String())
				printStats(r, "")
			}

			if output == "" {
				return nil
			}
			paths, err := exportRecord(output, results)
			if err != nil {
				return err
			}
			fmt.Println()
			for _, p := range paths {
				printFile(p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the randomized point sets as GeoJSON to this directory")

	return cmd
}

// exportRecord writes each replicate's sets as <run-id>_x1.geojson and
// <run-id>_x2.geojson. The original attributes are not archived.
func exportRecord(dir string, results []*randomize.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, r := range results {
		for i, set := range []geo.PointSet{r.Set1, r.Set2} {
			path := filepath.Join(dir, fmt.Sprintf("%s_x%d.geojson", r.RunID, i+1))
			if err := pointio.WriteFile(path, pointio.FromPointSet(set, pointio.FormatGeoJSON)); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
