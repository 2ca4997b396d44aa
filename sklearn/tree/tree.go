// Package tree implements CART decision trees: the "DT" regressor and the
// building block reused by the random forest and gradient boosting
// ensembles.
package tree

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sort"
)

// featureThreshold は同一とみなす特徴量値の差
const featureThreshold = 1e-7

// impurityEpsilon 以下の不純度のノードは純粋とみなし分割しない
const impurityEpsilon = 1e-12

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
	NSamples  int
	Impurity  float64
	Depth     int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a fitted binary tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes       []Node
	NFeatures   int
	importances []float64
}

// Apply returns the index of the leaf that row falls into.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Predict returns the value vector of the leaf that row falls into. For
// regression trees it has one element; for classification trees it holds
// the class probabilities.
func (t *Tree) Predict(row []float64) []float64 {
	return t.Nodes[t.Apply(row)].Value
}

// SetLeafValue overwrites the value of leaf i. Gradient boosting uses it to
// replace the mean residual with a Newton step.
func (t *Tree) SetLeafValue(i int, v []float64) {
	t.Nodes[i].Value = v
}

// Depth returns the depth of the deepest leaf; a single-leaf tree has depth 0.
func (t *Tree) Depth() int {
	d := 0
	for i := range t.Nodes {
		if t.Nodes[i].Depth > d {
			d = t.Nodes[i].Depth
		}
	}
	return d
}

// NLeaves returns the number of leaves.
func (t *Tree) NLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// FeatureImportances returns the normalized total impurity decrease per
// feature. All zeros when the tree is a single leaf.
func (t *Tree) FeatureImportances() []float64 {
	out := make([]float64, t.NFeatures)
	copy(out, t.importances)
	return out
}

// accumulator holds the sufficient statistics of a set of samples for one
// criterion. add and remove update it incrementally during the split sweep.
type accumulator interface {
	reset()
	add(i int)
	remove(i int)
	count() int
	impurity() float64
	value() []float64
	clone() accumulator
}

// mseAccumulator tracks sums for the squared error criterion.
type mseAccumulator struct {
	y          []float64
	n          int
	sum, sumSq float64
}

func (a *mseAccumulator) reset()     { a.n, a.sum, a.sumSq = 0, 0, 0 }
func (a *mseAccumulator) count() int { return a.n }
func (a *mseAccumulator) add(i int) {
	v := a.y[i]
	a.n++
	a.sum += v
	a.sumSq += v * v
}
func (a *mseAccumulator) remove(i int) {
	v := a.y[i]
	a.n--
	a.sum -= v
	a.sumSq -= v * v
}
func (a *mseAccumulator) impurity() float64 {
	if a.n == 0 {
		return 0
	}
	mean := a.sum / float64(a.n)
	v := a.sumSq/float64(a.n) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}
func (a *mseAccumulator) value() []float64 {
	if a.n == 0 {
		return []float64{0}
	}
	return []float64{a.sum / float64(a.n)}
}
func (a *mseAccumulator) clone() accumulator {
	c := *a
	return &c
}

// classAccumulator tracks class counts for gini and entropy.
type classAccumulator struct {
	y       []int
	counts  []float64
	n       int
	entropy bool
}

func (a *classAccumulator) reset() {
	for k := range a.counts {
		a.counts[k] = 0
	}
	a.n = 0
}
func (a *classAccumulator) count() int { return a.n }
func (a *classAccumulator) add(i int) {
	a.counts[a.y[i]]++
	a.n++
}
func (a *classAccumulator) remove(i int) {
	a.counts[a.y[i]]--
	a.n--
}
func (a *classAccumulator) impurity() float64 {
	if a.n == 0 {
		return 0
	}
	n := float64(a.n)
	if a.entropy {
		var h float64
		for _, c := range a.counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range a.counts {
		p := c / n
		g -= p * p
	}
	return g
}
func (a *classAccumulator) value() []float64 {
	out := make([]float64, len(a.counts))
	if a.n == 0 {
		return out
	}
	for k, c := range a.counts {
		out[k] = c / float64(a.n)
	}
	return out
}
func (a *classAccumulator) clone() accumulator {
	c := *a
	c.counts = append([]float64(nil), a.counts...)
	return &c
}

// split is the best split found for a pending node.
type split struct {
	feature     int
	threshold   float64
	pos         int // samples[:pos] go left after sorting by feature
	improvement float64
}

// frontier entry for best-first growth.
type pending struct {
	node    int
	samples []int
	split   *split
}

type frontier []*pending

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	// 改善量の大きい順、同値ならノード番号の小さい順
	if f[i].split.improvement != f[j].split.improvement {
		return f[i].split.improvement > f[j].split.improvement
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(*pending)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// builder grows one tree best-first. Without a leaf budget every splittable
// node is eventually expanded, which yields the same tree as depth-first growth.
type builder struct {
	rows        [][]float64
	params      Params
	rng         *rand.Rand
	acc         accumulator
	nFeatures   int
	maxFeatures int
	tree        *Tree
	importances []float64
}

// BuildRegressor grows a squared-error regression tree on rows[samples]
// with targets y. samples may contain duplicates (bootstrap draws).
func BuildRegressor(rows [][]float64, y []float64, samples []int, p Params, rng *rand.Rand) *Tree {
	return build(rows, &mseAccumulator{y: y}, samples, p, rng)
}

// BuildClassifier grows a classification tree; y holds class indices in
// [0, nClasses).
func BuildClassifier(rows [][]float64, y []int, nClasses int, samples []int, p Params, rng *rand.Rand) *Tree {
	acc := &classAccumulator{y: y, counts: make([]float64, nClasses), entropy: p.Criterion == "entropy"}
	return build(rows, acc, samples, p, rng)
}

func build(rows [][]float64, acc accumulator, samples []int, p Params, rng *rand.Rand) *Tree {
	nFeatures := 0
	if len(rows) > 0 {
		nFeatures = len(rows[0])
	}
	b := &builder{
		rows:        rows,
		params:      p.withDefaults(),
		rng:         rng,
		acc:         acc,
		nFeatures:   nFeatures,
		maxFeatures: p.resolveMaxFeatures(nFeatures),
		tree:        &Tree{NFeatures: nFeatures},
		importances: make([]float64, nFeatures),
	}
	b.grow(samples)

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
	b.tree.importances = b.importances
	return b.tree
}

func (b *builder) grow(samples []int) {
	root := b.addLeaf(samples, 0)
	var f frontier
	if s := b.findSplit(root, samples); s != nil {
		heap.Push(&f, &pending{node: root, samples: samples, split: s})
	}

	leaves := 1
	for f.Len() > 0 {
		if b.params.MaxLeafNodes > 0 && leaves >= b.params.MaxLeafNodes {
			break
		}
		p := heap.Pop(&f).(*pending)
		left, right := b.applySplit(p)
		leaves++

		for _, child := range []struct {
			node    int
			samples []int
		}{left, right} {
			if s := b.findSplit(child.node, child.samples); s != nil {
				heap.Push(&f, &pending{node: child.node, samples: child.samples, split: s})
			}
		}
	}
}

func (b *builder) addLeaf(samples []int, depth int) int {
	b.acc.reset()
	for _, i := range samples {
		b.acc.add(i)
	}
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Value:    b.acc.value(),
		NSamples: len(samples),
		Impurity: b.acc.impurity(),
		Depth:    depth,
	})
	return len(b.tree.Nodes) - 1
}

func (b *builder) applySplit(p *pending) (left, right struct {
	node    int
	samples []int
}) {
	s := p.split
	sorted := append([]int(nil), p.samples...)
	b.sortBy(sorted, s.feature)
	depth := b.tree.Nodes[p.node].Depth + 1

	left.samples = sorted[:s.pos]
	right.samples = sorted[s.pos:]
	left.node = b.addLeaf(left.samples, depth)
	right.node = b.addLeaf(right.samples, depth)

	n := &b.tree.Nodes[p.node]
	n.Feature = s.feature
	n.Threshold = s.threshold
	n.Left = left.node
	n.Right = right.node
	b.importances[s.feature] += s.improvement
	return left, right
}

func (b *builder) sortBy(samples []int, feature int) {
	sort.SliceStable(samples, func(i, j int) bool {
		return b.rows[samples[i]][feature] < b.rows[samples[j]][feature]
	})
}

// findSplit returns the best split of a node or nil when the node must stay a leaf.
func (b *builder) findSplit(node int, samples []int) *split {
	nd := b.tree.Nodes[node]
	n := len(samples)
	p := b.params
	if (p.MaxDepth > 0 && nd.Depth >= p.MaxDepth) ||
		n < p.MinSamplesSplit || n < 2*p.MinSamplesLeaf ||
		nd.Impurity <= impurityEpsilon {
		return nil
	}

	features := b.candidateFeatures()
	sorted := make([]int, n)
	var best *split
	parent := float64(n) * nd.Impurity

	for _, f := range features {
		copy(sorted, samples)
		b.sortBy(sorted, f)
		if b.rows[sorted[n-1]][f] <= b.rows[sorted[0]][f]+featureThreshold {
			continue
		}

		left := b.acc.clone()
		right := b.acc.clone()
		left.reset()
		right.reset()
		for _, i := range sorted {
			right.add(i)
		}

		for pos := 1; pos < n; pos++ {
			moved := sorted[pos-1]
			left.add(moved)
			right.remove(moved)

			if pos < p.MinSamplesLeaf || n-pos < p.MinSamplesLeaf {
				continue
			}
			lo := b.rows[sorted[pos-1]][f]
			hi := b.rows[sorted[pos]][f]
			if hi <= lo+featureThreshold {
				continue
			}

			improvement := parent - float64(pos)*left.impurity() - float64(n-pos)*right.impurity()
			if best == nil || improvement > best.improvement {
				threshold := lo/2 + hi/2
				if threshold == hi || math.IsInf(threshold, 0) {
					threshold = lo
				}
				best = &split{feature: f, threshold: threshold, pos: pos, improvement: improvement}
			}
		}
	}
	return best
}

func (b *builder) candidateFeatures() []int {
	if b.maxFeatures >= b.nFeatures || b.rng == nil {
		out := make([]int, b.nFeatures)
		for j := range out {
			out[j] = j
		}
		return out
	}
	perm := b.rng.Perm(b.nFeatures)[:b.maxFeatures]
	sort.Ints(perm)
	return perm
}
