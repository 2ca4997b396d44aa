package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// lineDistances は1次元上の点の距離行列
func lineDistances(points ...float64) *mat.SymDense {
	n := len(points)
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, math.Abs(points[i]-points[j]))
		}
	}
	return d
}

func TestLink_WardDistance(t *testing.T) {
	link, err := Link(lineDistances(0, 1, 10), Ward)
	require.NoError(t, err)
	require.Len(t, link, 2)

	assert.Equal(t, Merge{A: 0, B: 1, Distance: 1, Size: 2}, link[0])
	// sqrt(2·n_a·n_b/(n_a+n_b))·|c_a − c_b| = sqrt(4/3)·9.5
	assert.InDelta(t, math.Sqrt(4.0/3.0)*9.5, link[1].Distance, 1e-12)
	assert.Equal(t, 2, link[1].A)
	assert.Equal(t, 3, link[1].B)
	assert.Equal(t, 3, link[1].Size)
}

func TestLink_Methods(t *testing.T) {
	d := lineDistances(0, 1, 10)
	tests := []struct {
		method Method
		want   float64
	}{
		{Single, 9},
		{Complete, 10},
		{Average, 9.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			link, err := Link(d, tt.method)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, link[1].Distance, 1e-12)
		})
	}

	_, err := Link(d, Method("centroid"))
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFCluster(t *testing.T) {
	link, err := Link(lineDistances(0, 1, 10, 11), Ward)
	require.NoError(t, err)

	tests := []struct {
		name string
		t    float64
		want []int
	}{
		{"zero threshold keeps singletons", 0, []int{1, 2, 3, 4}},
		{"pairs", 1, []int{1, 1, 2, 2}},
		{"above final merge", 100, []int{1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FCluster(link, 4, tt.t))
		})
	}
}

func TestFCluster_LabelsByFirstAppearance(t *testing.T) {
	// 0と3、1と2が近い
	link, err := Link(lineDistances(0, 50, 51, 1), Ward)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 1}, FCluster(link, 4, 2))
}

func TestLinkage_LeafOrder(t *testing.T) {
	link, err := Link(lineDistances(0, 50, 51, 1), Ward)
	require.NoError(t, err)

	order := link.LeafOrder()
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, order)
	// 同じクラスタの葉は隣り合う
	pos := make(map[int]int)
	for i, leaf := range order {
		pos[leaf] = i
	}
	assert.Equal(t, 1, int(math.Abs(float64(pos[0]-pos[3]))))
	assert.Equal(t, 1, int(math.Abs(float64(pos[1]-pos[2]))))

	single, err := Link(lineDistances(0), Ward)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, single.LeafOrder())
}

func TestLink_RejectsNaN(t *testing.T) {
	d := lineDistances(0, 1)
	d.SetSym(0, 1, math.NaN())
	_, err := Link(d, Ward)
	assert.Error(t, err)
}
