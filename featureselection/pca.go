package featureselection

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/shrubheight/cvtune/dataset"
	"github.com/shrubheight/cvtune/pkg/errors"
	"github.com/shrubheight/cvtune/preprocessing"
)

// PCAClusterTransform min-max scales the clustered features and replaces
// each cluster by the scores of its first principal component. Output
// columns follow the order of clusters; the sign of each component is fixed
// so that its largest loading is positive.
func PCAClusterTransform(t *dataset.Table, clusters []Cluster) (*mat.Dense, error) {
	if len(clusters) == 0 {
		return nil, errors.NewDataError("PCAClusterTransform", "cluster list is empty")
	}

	var names []string
	pos := make(map[string]int)
	for _, c := range clusters {
		if len(c.Features) == 0 {
			return nil, errors.NewDataError("PCAClusterTransform", "cluster has no features")
		}
		for _, f := range c.Features {
			if _, ok := pos[f]; !ok {
				pos[f] = len(names)
				names = append(names, f)
			}
		}
	}
	X, err := t.Matrix(names...)
	if err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("PCAClusterTransform", X); err != nil {
		return nil, err
	}
	scaled, err := preprocessing.NewMinMaxScalerDefault().FitTransform(X)
	if err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	out := mat.NewDense(r, len(clusters), nil)
	for k, c := range clusters {
		sub := mat.NewDense(r, len(c.Features), nil)
		for j, f := range c.Features {
			sub.SetCol(j, mat.Col(nil, pos[f], scaled))
		}
		out.SetCol(k, firstComponentScores(sub))
	}
	return out, nil
}

// firstComponentScores returns the projection of the centered columns of X
// onto their first principal direction.
func firstComponentScores(X *mat.Dense) []float64 {
	r, c := X.Dims()
	centered := mat.DenseCopyOf(X)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		m := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			centered.Set(i, j, col[i]-m)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return make([]float64, r)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	dir := mat.Col(nil, 0, &vecs)

	maxIdx := 0
	for j := range dir {
		if math.Abs(dir[j]) > math.Abs(dir[maxIdx]) {
			maxIdx = j
		}
	}
	if dir[maxIdx] < 0 {
		for j := range dir {
			dir[j] = -dir[j]
		}
	}

	var scores mat.VecDense
	scores.MulVec(centered, mat.NewVecDense(c, dir))
	return scores.RawVector().Data
}
