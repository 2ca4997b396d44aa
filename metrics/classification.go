package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("Accuracy", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ClassScores はクラスごとの適合率・再現率・F1・サポート
type ClassScores struct {
	Label     float64 `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report はscikit-learnのclassification_reportに相当する
type Report struct {
	Classes     []ClassScores `json:"classes"`
	Accuracy    float64       `json:"accuracy"`
	MacroAvg    ClassScores   `json:"macro_avg"`
	WeightedAvg ClassScores   `json:"weighted_avg"`
}

// ClassificationReport computes per-class precision, recall and F1 over the
// union of labels in yTrue and yPred. Ill-defined ratios are set to 0 and an
// UndefinedMetricWarning is raised.
func ClassificationReport(yTrue, yPred []float64) (*Report, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	labelSet := map[float64]struct{}{}
	for i := range yTrue {
		labelSet[yTrue[i]] = struct{}{}
		labelSet[yPred[i]] = struct{}{}
	}
	labels := make([]float64, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	rep := &Report{Accuracy: acc}
	total := len(yTrue)
	for _, l := range labels {
		var tp, fp, fn int
		for i := range yTrue {
			switch {
			case yTrue[i] == l && yPred[i] == l:
				tp++
			case yTrue[i] != l && yPred[i] == l:
				fp++
			case yTrue[i] == l && yPred[i] != l:
				fn++
			}
		}
		cs := ClassScores{Label: l, Support: tp + fn}
		cs.Precision = ratio(tp, tp+fp, "precision", l)
		cs.Recall = ratio(tp, tp+fn, "recall", l)
		if cs.Precision+cs.Recall > 0 {
			cs.F1 = 2 * cs.Precision * cs.Recall / (cs.Precision + cs.Recall)
		}
		rep.Classes = append(rep.Classes, cs)

		k := float64(len(labels))
		w := float64(cs.Support) / float64(total)
		rep.MacroAvg.Precision += cs.Precision / k
		rep.MacroAvg.Recall += cs.Recall / k
		rep.MacroAvg.F1 += cs.F1 / k
		rep.WeightedAvg.Precision += cs.Precision * w
		rep.WeightedAvg.Recall += cs.Recall * w
		rep.WeightedAvg.F1 += cs.F1 * w
	}
	rep.MacroAvg.Support = total
	rep.WeightedAvg.Support = total
	return rep, nil
}

func ratio(num, den int, metric string, label float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric,
			fmt.Sprintf("no samples for label %g", label), 0))
		return 0
	}
	return float64(num) / float64(den)
}

// String formats the report as a text table.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%14g %10.2f %10.2f %10.2f %10d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, row := range []struct {
		name string
		s    ClassScores
	}{{"macro avg", r.MacroAvg}, {"weighted avg", r.WeightedAvg}} {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", row.name, row.s.Precision, row.s.Recall, row.s.F1, row.s.Support)
	}
	return b.String()
}
