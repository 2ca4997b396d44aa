// Package report renders the outputs of a run: the permutation importance
// box plot, the observed against predicted scatter, the feature dendrogram
// and the CSV files behind them.
package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/sklearn/cluster"
)

// DefaultTopFeatures is the number of features shown in the importance plot.
const DefaultTopFeatures = 12

// FeatureRank is the median permutation importance of one feature.
type FeatureRank struct {
	Feature string
	Median  float64
	Values  []float64
}

// RankByMedian orders the columns of importances (repeats × features) by
// descending median. Ties keep column order.
func RankByMedian(importances mat.Matrix, names []string) ([]FeatureRank, error) {
	r, c := importances.Dims()
	if len(names) != c {
		return nil, errors.NewDimensionError("RankByMedian", c, len(names), 1)
	}
	out := make([]FeatureRank, c)
	for j := 0; j < c; j++ {
		vals := mat.Col(nil, j, importances)
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		med := math.NaN()
		if r > 0 {
			med = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
		}
		out[j] = FeatureRank{Feature: names[j], Median: med, Values: vals}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Median > out[b].Median })
	return out, nil
}

// ImportanceBoxPlot saves a box plot of the top features by median
// importance. The image format follows the extension of path.
func ImportanceBoxPlot(path string, importances mat.Matrix, names []string, top int) error {
	ranks, err := RankByMedian(importances, names)
	if err != nil {
		return err
	}
	if top <= 0 {
		top = DefaultTopFeatures
	}
	if len(ranks) > top {
		ranks = ranks[:top]
	}

	p := plot.New()
	p.Title.Text = "Permutation importance"
	p.X.Label.Text = "decrease in r²"

	w := vg.Points(14)
	labels := make([]string, len(ranks))
	for i, fr := range ranks {
		// 上から重要度の高い順に並べる
		loc := float64(len(ranks) - 1 - i)
		b, err := plotter.NewBoxPlot(w, loc, plotter.Values(fr.Values))
		if err != nil {
			return errors.Wrapf(err, "box plot for %s", fr.Feature)
		}
		b.Horizontal = true
		b.FillColor = color.RGBA{R: 120, G: 160, B: 210, A: 255}
		p.Add(b)
		labels[len(ranks)-1-i] = fr.Feature
	}
	p.NominalY(labels...)
	p.Add(plotter.NewGrid())

	return save(p, 8*vg.Inch, 6*vg.Inch, path)
}

// ScatterPlot saves observed (x) against predicted (y) values with the 1:1
// line. Pairs with a non-finite value are skipped.
func ScatterPlot(path string, observed, predicted []float64, title string) error {
	if len(observed) != len(predicted) {
		return errors.NewDimensionError("ScatterPlot", len(observed), len(predicted), 0)
	}
	pts := make(plotter.XYs, 0, len(observed))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range observed {
		o, pr := observed[i], predicted[i]
		if !finite(o) || !finite(pr) {
			continue
		}
		pts = append(pts, plotter.XY{X: o, Y: pr})
		lo = math.Min(lo, math.Min(o, pr))
		hi = math.Max(hi, math.Max(o, pr))
	}
	if len(pts) == 0 {
		return errors.NewValueError("ScatterPlot", "no finite observed/predicted pairs")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "observed"
	p.Y.Label.Text = "predicted"

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 200}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)

	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "1:1 line")
	}
	l.Color = color.RGBA{R: 200, A: 255}
	l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l, plotter.NewGrid())
	p.Legend.Add("1:1", l)

	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	return save(p, 6*vg.Inch, 6*vg.Inch, path)
}

// Dendrogram saves the tree of a linkage over the given leaf labels. A
// positive threshold is drawn as a horizontal cut line.
func Dendrogram(path string, link cluster.Linkage, labels []string, threshold float64) error {
	n := len(link) + 1
	if len(labels) != n {
		return errors.NewDimensionError("Dendrogram", n, len(labels), 0)
	}

	// 葉の位置は葉順序で0..n-1、内部ノードは子の中点
	x := make([]float64, 2*n-1)
	h := make([]float64, 2*n-1)
	ordered := make([]string, n)
	for pos, leaf := range link.LeafOrder() {
		x[leaf] = float64(pos)
		ordered[pos] = labels[leaf]
	}

	p := plot.New()
	p.Title.Text = "Feature dendrogram"
	p.Y.Label.Text = "distance"

	top := 0.0
	for i, m := range link {
		c := n + i
		x[c] = (x[m.A] + x[m.B]) / 2
		h[c] = m.Distance
		top = math.Max(top, m.Distance)

		l, err := plotter.NewLine(plotter.XYs{
			{X: x[m.A], Y: h[m.A]},
			{X: x[m.A], Y: m.Distance},
			{X: x[m.B], Y: m.Distance},
			{X: x[m.B], Y: h[m.B]},
		})
		if err != nil {
			return errors.Wrapf(err, "merge %d", i)
		}
		l.Color = color.RGBA{R: 30, G: 30, B: 30, A: 255}
		p.Add(l)
	}

	if threshold > 0 {
		cut, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: threshold}, {X: float64(n) - 0.5, Y: threshold}})
		if err != nil {
			return errors.Wrap(err, "threshold line")
		}
		cut.Color = color.RGBA{R: 200, A: 255}
		cut.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(cut)
		p.Legend.Add("threshold", cut)
		top = math.Max(top, threshold)
	}

	p.NominalX(ordered...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Y.Min = 0
	p.Y.Max = top * 1.05
	if p.Y.Max == 0 {
		p.Y.Max = 1
	}

	width := vg.Length(math.Max(6, float64(n)*0.3)) * vg.Inch
	return save(p, width, 5*vg.Inch, path)
}

// WritePredictions writes observed and predicted columns to path.
func WritePredictions(path string, observed, predicted []float64) error {
	t, err := dataset.NewTable([]string{"observed", "predicted"}, [][]float64{observed, predicted})
	if err != nil {
		return err
	}
	return writeTable(path, t)
}

// WriteImportances writes the importance matrix with one column per feature
// and one row per repeat.
func WriteImportances(path string, importances mat.Matrix, names []string) error {
	t, err := dataset.FromMatrix(names, importances)
	if err != nil {
		return err
	}
	return writeTable(path, t)
}

func writeTable(path string, t *dataset.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report directory")
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save %s", filepath.Base(path))
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
