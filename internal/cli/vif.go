package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shrubheight/cvtune/featureselection"
	"github.com/shrubheight/cvtune/pkg/log"
)

var vifCmd = &cobra.Command{
	Use:   "vif",
	Short: "Drop features with a high variance inflation factor",
	Long: `Repeatedly drop the feature with the largest variance inflation
factor until every remaining feature is at or below --vif-threshold.`,
	RunE: runVIF,
}

func init() {
	addDataFlags(vifCmd)
	vifCmd.Flags().Float64("vif-threshold", 0, "maximum VIF kept (default 10)")
}

func runVIF(cmd *cobra.Command, _ []string) error {
	t, features, err := loadInput(false)
	if err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli.vif")

	res, err := featureselection.CalculateVIF(t, features, cfg.VIF)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range res.Dropped {
		fmt.Fprintf(out, "dropping %q at index %d (VIF %.3g)\n", d.Feature, d.Index, d.VIF)
	}
	fmt.Fprintf(out, "remaining variables: %s\n", strings.Join(res.Remaining, ","))
	logger.Info("vif selection done",
		log.FeaturesKey, len(res.Remaining),
		log.ThresholdKey, cfg.VIF,
	)
	return nil
}
