package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shrubheight/cvtune/pkg/store"
)

var runsModel string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE:  listRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Print a stored run as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

func init() {
	runsCmd.Flags().StringVar(&runsModel, "model", "", "only list runs of this model")
	runsCmd.AddCommand(runsShowCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.List(runsModel)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMETHOD\tROWS\tR2\tRMSE\tSECONDS")
	for _, r := range recs {
		r2, rmse := "-", "-"
		if r.Stats != nil {
			r2 = fmt.Sprintf("%.4f", r.Stats.R2)
			rmse = fmt.Sprintf("%.4f", r.Stats.RMSE)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%.1f\n", r.ID, r.Model, r.Method, r.Rows, r2, rmse, r.ElapsedSeconds)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := s.Get(args[0])
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return enc.Close()
}
