// Package cluster implements agglomerative hierarchical clustering on a
// precomputed distance matrix. Feature selection uses it with Ward linkage
// on 1−|ρ| distances between features.
package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shrubheight/cvtune/pkg/errors"
)

// Merge is one row of a linkage: clusters A and B (A < B) joined at
// Distance into a cluster of Size observations. Observations are 0..n-1 and
// the cluster formed by merge i has index n+i.
type Merge struct {
	A, B     int
	Distance float64
	Size     int
}

// Linkage is the n−1 merges of a hierarchical clustering in merge order.
type Linkage []Merge

// Method はクラスタ間距離の更新方法
type Method string

const (
	Ward     Method = "ward"
	Single   Method = "single"
	Complete Method = "complete"
	Average  Method = "average"
)

// update returns the Lance–Williams distance between cluster k and the
// union of i and j.
func (m Method) update(dki, dkj, dij float64, ni, nj, nk int) float64 {
	switch m {
	case Single:
		return math.Min(dki, dkj)
	case Complete:
		return math.Max(dki, dkj)
	case Average:
		return (float64(ni)*dki + float64(nj)*dkj) / float64(ni+nj)
	default:
		t := float64(ni + nj + nk)
		v := (float64(ni+nk)*dki*dki + float64(nj+nk)*dkj*dkj - float64(nk)*dij*dij) / t
		if v < 0 {
			v = 0
		}
		return math.Sqrt(v)
	}
}

// Link builds the hierarchy of the n observations of the symmetric distance
// matrix dist. At each step the closest pair of active clusters is merged;
// ties go to the pair with the lowest indices.
func Link(dist mat.Symmetric, method Method) (Linkage, error) {
	switch method {
	case Ward, Single, Complete, Average:
	default:
		return nil, errors.NewConfigurationError("linkage", string(method),
			[]string{string(Ward), string(Single), string(Complete), string(Average)})
	}
	n := dist.SymmetricDim()
	if n == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}

	// d は作業用の距離行列。slot[i] は行iが表すクラスタの番号
	d := mat.NewSymDense(n, nil)
	d.CopySym(dist)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := d.At(i, j)
			if math.IsNaN(v) || v < 0 {
				return nil, errors.NewValueError("cluster.Link", "distances must be finite and non-negative")
			}
		}
	}
	slot := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range slot {
		slot[i] = i
		size[i] = 1
		active[i] = true
	}

	link := make(Linkage, 0, n-1)
	for step := 0; step < n-1; step++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d.At(i, j) < best {
					best = d.At(i, j)
					bi, bj = i, j
				}
			}
		}

		a, b := slot[bi], slot[bj]
		if a > b {
			a, b = b, a
		}
		link = append(link, Merge{A: a, B: b, Distance: best, Size: size[bi] + size[bj]})

		// bi に結合後のクラスタを置き、bj を無効化する
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			d.SetSym(k, bi, method.update(d.At(k, bi), d.At(k, bj), best, size[bi], size[bj], size[k]))
		}
		size[bi] += size[bj]
		slot[bi] = n + step
		active[bj] = false
	}
	return link, nil
}

// FCluster cuts the hierarchy at height t: observations joined by merges of
// height <= t share a cluster. The linkage must be monotone, which holds for
// every Method. Labels are 1-based and numbered in order of
// first appearance of an observation.
func FCluster(link Linkage, n int, t float64) []int {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	// 結合iのクラスタ番号 n+i を、その構成要素の代表に対応付ける
	node := make([]int, 2*n-1)
	for i := 0; i < n; i++ {
		node[i] = i
	}
	for i, m := range link {
		ra, rb := find(node[m.A]), find(node[m.B])
		node[n+i] = ra
		if m.Distance <= t {
			parent[rb] = ra
		}
	}

	labels := make([]int, n)
	ids := make(map[int]int)
	for i := 0; i < n; i++ {
		r := find(i)
		id, ok := ids[r]
		if !ok {
			id = len(ids) + 1
			ids[r] = id
		}
		labels[i] = id
	}
	return labels
}

// LeafOrder returns the observations in dendrogram order: a depth-first
// walk from the root visiting A before B.
func (l Linkage) LeafOrder() []int {
	n := len(l) + 1
	if len(l) == 0 {
		return []int{0}
	}
	order := make([]int, 0, n)
	stack := []int{2*n - 2}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c < n {
			order = append(order, c)
			continue
		}
		m := l[c-n]
		stack = append(stack, m.B, m.A)
	}
	return order
}
