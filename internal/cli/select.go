package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/featureselection"
	"github.com/shrubheight/cvtune/pkg/log"
	"github.com/shrubheight/cvtune/report"
)

var selectPCA bool

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Cluster correlated features and pick one per cluster",
	Long: `Cluster the features by Spearman correlation (Ward linkage on
1 - |rho|), cut the tree at --threshold and keep, per cluster, the feature
most correlated with the target.

A dendrogram is written to the output directory. With --pca the first
principal component of every cluster is written as well.`,
	RunE: runSelect,
}

func init() {
	addDataFlags(selectCmd)
	selectCmd.Flags().Float64("threshold", 0, "cluster distance threshold (default 0.4)")
	selectCmd.Flags().BoolVar(&selectPCA, "pca", false, "also write the per-cluster principal components")
}

func runSelect(cmd *cobra.Command, _ []string) error {
	t, features, err := loadInput(true)
	if err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cli.select")

	res, err := featureselection.ClusterAndSelect(t, features, cfg.Target, cfg.Threshold)
	if err != nil {
		return err
	}
	logger.Info("features clustered",
		log.FeaturesKey, len(res.Features),
		log.ClustersKey, len(res.Clusters),
		log.ThresholdKey, cfg.Threshold,
	)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tSELECTED\tFEATURES")
	for i, c := range res.Clusters {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, res.Selected[i], strings.Join(c.Features, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nselected: %s\n", strings.Join(res.Selected, ","))

	dendro := filepath.Join(cfg.OutputDir, "dendrogram.png")
	if err := report.Dendrogram(dendro, res.Linkage, res.Features, cfg.Threshold); err != nil {
		return err
	}

	if selectPCA {
		pcs, err := featureselection.PCAClusterTransform(t, res.Clusters)
		if err != nil {
			return err
		}
		names := make([]string, len(res.Clusters))
		for i, c := range res.Clusters {
			names[i] = fmt.Sprintf("Cluster %d", c.ID)
		}
		tbl, err := dataset.FromMatrix(names, pcs)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.OutputDir, "cluster_pca.csv")
		if err := writeTableFile(path, tbl); err != nil {
			return err
		}
		fmt.Fprintf(out, "principal components written to %s\n", path)
	}
	return nil
}
