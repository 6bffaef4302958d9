package topicmodel

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// maxLambda caps 1/distance for coincident points.
const maxLambda = 1e12

// HDBSCAN is a density-based clusterer with euclidean distance and
// excess-of-mass cluster selection. MinSamples defaults to MinClusterSize.
// The root of the hierarchy is never selected.
type HDBSCAN struct {
	MinClusterSize int
	MinSamples     int
}

// NewHDBSCAN returns a clusterer with MinSamples equal to minClusterSize.
func NewHDBSCAN(minClusterSize int) *HDBSCAN {
	return &HDBSCAN{MinClusterSize: minClusterSize, MinSamples: minClusterSize}
}

type mstEdge struct {
	a, b int
	w    float64
}

// linkNode is one merge of the single-linkage tree. Node ids >= n are merges.
type linkNode struct {
	left, right int
	dist        float64
	size        int
}

// condensedRow records a point or cluster leaving parent at lambda.
type condensedRow struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit labels every row of X with a cluster id in [0, k) or Noise.
// Cluster ids follow the order in which clusters appear in the condensed tree.
func (h *HDBSCAN) Fit(ctx context.Context, X *mat.Dense) ([]int, error) {
	n, _ := X.Dims()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	minSize := h.MinClusterSize
	if minSize < 2 {
		minSize = 2
	}
	if n < minSize {
		return labels, nil
	}
	minSamples := h.MinSamples
	if minSamples <= 0 {
		minSamples = minSize
	}

	core := coreDistances(X, minSamples)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	edges := primMST(X, core)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree := singleLinkage(edges, n)
	condensed := condenseTree(tree, n, minSize)
	selected := selectEOM(condensed, n)

	return labelPoints(condensed, selected, n, labels), nil
}

// Membership gives each row a probability vector over the clusters in labels,
// proportional to the inverse euclidean distance to each cluster centroid.
func (h *HDBSCAN) Membership(X *mat.Dense, labels []int) *mat.Dense {
	return centroidMembership(X, labels)
}

func centroidMembership(X *mat.Dense, labels []int) *mat.Dense {
	n, d := X.Dims()
	k := 0
	for _, l := range labels {
		if l+1 > k {
			k = l + 1
		}
	}
	if k == 0 {
		return nil
	}
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, d)
	}
	for i, l := range labels {
		if l < 0 {
			continue
		}
		floats.Add(centroids[l], X.RawRowView(i))
		counts[l]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), centroids[c])
		}
	}

	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		p := X.RawRowView(i)
		exact := -1
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			dist := floats.Distance(p, centroids[c], 2)
			if dist == 0 {
				exact = c
				break
			}
			row[c] = 1 / dist
		}
		if exact >= 0 {
			for c := range row {
				row[c] = 0
			}
			row[exact] = 1
			continue
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
	}
	return out
}

// coreDistances is the distance to the k-th nearest neighbour of each point,
// counting the point itself.
func coreDistances(X *mat.Dense, k int) []float64 {
	n, _ := X.Dims()
	if k > n {
		k = n
	}
	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		p := X.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] = floats.Distance(p, X.RawRowView(j), 2)
		}
		core[i] = quickselect(row, k-1)
	}
	return core
}

// quickselect returns the k-th smallest value (0-based) and reorders xs.
func quickselect(xs []float64, k int) float64 {
	lo, hi := 0, len(xs)-1
	for lo < hi {
		pivot := xs[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for xs[i] < pivot {
				i++
			}
			for xs[j] > pivot {
				j--
			}
			if i <= j {
				xs[i], xs[j] = xs[j], xs[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return xs[k]
		}
	}
	return xs[k]
}

// primMST builds the minimum spanning tree of the mutual reachability graph
// without materialising the distance matrix.
func primMST(X *mat.Dense, core []float64) []mstEdge {
	n := len(core)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		p := X.RawRowView(current)
		next := -1
		nextW := math.Inf(1)
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := floats.Distance(p, X.RawRowView(j), 2)
			mr := math.Max(d, math.Max(core[current], core[j]))
			if mr < best[j] {
				best[j] = mr
				from[j] = current
			}
			if best[j] < nextW {
				nextW = best[j]
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, w: nextW})
		current = next
	}
	return edges
}

func singleLinkage(edges []mstEdge, n int) []linkNode {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })

	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := make([]linkNode, 0, n-1)
	next := n
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		tree = append(tree, linkNode{left: ra, right: rb, dist: e.w, size: size[ra] + size[rb]})
		parent[ra], parent[rb] = next, next
		size[next] = size[ra] + size[rb]
		next++
	}
	return tree
}

// condenseTree walks the single-linkage tree from the root and keeps only
// splits where both sides hold at least minSize points. Clusters are numbered
// from n upward; the root is n.
func condenseTree(tree []linkNode, n, minSize int) []condensedRow {
	root := 2*n - 2
	nodeSize := func(id int) int {
		if id < n {
			return 1
		}
		return tree[id-n].size
	}
	// leaves below id, in any order
	leaves := func(id int) []int {
		var out []int
		stack := []int{id}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top < n {
				out = append(out, top)
				continue
			}
			node := tree[top-n]
			stack = append(stack, node.right, node.left)
		}
		return out
	}
	lambdaOf := func(dist float64) float64 {
		if dist <= 0 {
			return maxLambda
		}
		return math.Min(1/dist, maxLambda)
	}

	relabel := map[int]int{root: n}
	nextLabel := n + 1
	var rows []condensedRow

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node < n {
			continue
		}
		label, ok := relabel[node]
		if !ok {
			continue
		}
		link := tree[node-n]
		lambda := lambdaOf(link.dist)
		left, right := link.left, link.right
		leftSize, rightSize := nodeSize(left), nodeSize(right)

		switch {
		case leftSize >= minSize && rightSize >= minSize:
			relabel[left] = nextLabel
			rows = append(rows, condensedRow{parent: label, child: nextLabel, lambda: lambda, size: leftSize})
			nextLabel++
			relabel[right] = nextLabel
			rows = append(rows, condensedRow{parent: label, child: nextLabel, lambda: lambda, size: rightSize})
			nextLabel++
			queue = append(queue, left, right)
		case leftSize < minSize && rightSize < minSize:
			for _, p := range leaves(left) {
				rows = append(rows, condensedRow{parent: label, child: p, lambda: lambda, size: 1})
			}
			for _, p := range leaves(right) {
				rows = append(rows, condensedRow{parent: label, child: p, lambda: lambda, size: 1})
			}
		case leftSize < minSize:
			relabel[right] = label
			for _, p := range leaves(left) {
				rows = append(rows, condensedRow{parent: label, child: p, lambda: lambda, size: 1})
			}
			queue = append(queue, right)
		default:
			relabel[left] = label
			for _, p := range leaves(right) {
				rows = append(rows, condensedRow{parent: label, child: p, lambda: lambda, size: 1})
			}
			queue = append(queue, left)
		}
	}
	return rows
}

// selectEOM returns the selected cluster ids using excess of mass.
func selectEOM(rows []condensedRow, n int) map[int]bool {
	birth := map[int]float64{n: 0}
	children := make(map[int][]int)
	stability := make(map[int]float64)
	maxCluster := n
	for _, r := range rows {
		if r.child >= n {
			birth[r.child] = r.lambda
			children[r.parent] = append(children[r.parent], r.child)
			if r.child > maxCluster {
				maxCluster = r.child
			}
		}
	}
	for _, r := range rows {
		stability[r.parent] += (r.lambda - birth[r.parent]) * float64(r.size)
	}

	selected := make(map[int]bool)
	for c := n + 1; c <= maxCluster; c++ {
		selected[c] = true
	}
	var unselect func(int)
	unselect = func(c int) {
		for _, child := range children[c] {
			selected[child] = false
			unselect(child)
		}
	}
	// children always carry larger ids than their parent
	for c := maxCluster; c > n; c-- {
		var subtree float64
		for _, child := range children[c] {
			subtree += stability[child]
		}
		if len(children[c]) > 0 && subtree > stability[c] {
			selected[c] = false
			stability[c] = subtree
		} else {
			unselect(c)
		}
	}

	out := make(map[int]bool)
	for c, ok := range selected {
		if ok {
			out[c] = true
		}
	}
	return out
}

func labelPoints(rows []condensedRow, selected map[int]bool, n int, labels []int) []int {
	clusterParent := make(map[int]int)
	pointParent := make([]int, n)
	for _, r := range rows {
		if r.child >= n {
			clusterParent[r.child] = r.parent
		} else {
			pointParent[r.child] = r.parent
		}
	}

	ids := make([]int, 0, len(selected))
	for c := range selected {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	index := make(map[int]int, len(ids))
	for i, c := range ids {
		index[c] = i
	}

	for p := 0; p < n; p++ {
		c := pointParent[p]
		for {
			if selected[c] {
				labels[p] = index[c]
				break
			}
			up, ok := clusterParent[c]
			if !ok {
				break
			}
			c = up
		}
	}
	return labels
}
