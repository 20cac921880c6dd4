package cluster

import (
	"math"
	"sort"
)

// Outlier is the topic id of points that belong to no dense region.
const Outlier = -1

// HDBSCAN clusters points by density.
type HDBSCAN struct {
	MinClusterSize int
	// MinSamples sets the core-distance neighbourhood. Zero means MinClusterSize.
	MinSamples int
	// AllowSingleCluster lets the whole data set form one cluster.
	AllowSingleCluster bool
	// OutlierThreshold applies when the single root cluster is selected:
	// points with a GLOSH score above it are outliers. Scores compare a
	// point's fall-out lambda with the median over the root's points.
	OutlierThreshold float64
}

// dupTolerance is the distance below which points count as identical.
const dupTolerance = 1e-9

type linkNode struct {
	left, right int
	dist        float64
	size        int
}

type condensedRow struct {
	parent, child int
	lambda        float64
	size          int
}

// Fit returns one raw label per point. Labels are arbitrary non-negative ids
// or Outlier. Identical points are clustered once and share a label.
func (h HDBSCAN) Fit(points [][]float64) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Outlier
	}

	minSize := h.MinClusterSize
	if minSize < 2 {
		minSize = 2
	}
	if n < 2 || n < minSize {
		return labels
	}

	reps, owner := dedupe(points)
	if len(reps) == 1 {
		if h.AllowSingleCluster {
			for i := range labels {
				labels[i] = 0
			}
		}
		return labels
	}

	m := len(reps)
	minSamples := h.MinSamples
	if minSamples <= 0 {
		minSamples = minSize
	}
	if minSamples > m {
		minSamples = m
	}

	dist := pairwise(reps)
	core := coreDistances(dist, minSamples)
	edges := primMST(dist, core)
	tree := singleLinkage(edges, m)
	rows := condense(tree, m, minSize)
	stability := computeStability(rows, m)
	selected := selectClusters(rows, stability, m, h.AllowSingleCluster)
	repLabels := h.label(rows, selected, m)

	for i, r := range owner {
		labels[i] = repLabels[r]
	}
	return labels
}

// dedupe collapses identical points. owner maps each point to its
// representative in reps.
func dedupe(points [][]float64) (reps [][]float64, owner []int) {
	owner = make([]int, len(points))
	for i, p := range points {
		owner[i] = -1
		for r, q := range reps {
			if euclidean(p, q) <= dupTolerance {
				owner[i] = r
				break
			}
		}
		if owner[i] < 0 {
			owner[i] = len(reps)
			reps = append(reps, p)
		}
	}
	return reps, owner
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for k := range a {
		diff := a[k] - b[k]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func pairwise(points [][]float64) [][]float64 {
	n := len(points)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d[i][j] = euclidean(points[i], points[j])
			d[j][i] = d[i][j]
		}
	}
	return d
}

// coreDistances returns the distance to the k-th nearest neighbour, counting
// the point itself.
func coreDistances(dist [][]float64, k int) []float64 {
	core := make([]float64, len(dist))
	row := make([]float64, len(dist))
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

type edge struct {
	a, b int
	w    float64
}

// primMST builds the minimum spanning tree of the mutual reachability graph.
func primMST(dist [][]float64, core []float64) []edge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			mr := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if mr < best[j] {
				best[j] = mr
				from[j] = current
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, edge{a: from[next], b: next, w: best[next]})
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })
	return edges
}

// singleLinkage turns sorted MST edges into a binary merge tree. Leaves are
// 0..n-1; merge i is node n+i. The root is 2n-2.
func singleLinkage(edges []edge, n int) []linkNode {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := make([]linkNode, 2*n-1)
	for i := 0; i < n; i++ {
		tree[i] = linkNode{left: -1, right: -1, size: 1}
	}
	next := n
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		tree[next] = linkNode{left: ra, right: rb, dist: e.w, size: size[ra] + size[rb]}
		size[next] = tree[next].size
		parent[ra] = next
		parent[rb] = next
		next++
	}
	return tree
}

func leaves(tree []linkNode, node, n int, visit func(int)) {
	stack := []int{node}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur < n {
			visit(cur)
			continue
		}
		stack = append(stack, tree[cur].right, tree[cur].left)
	}
}

// condense walks the merge tree from the root and keeps only splits where
// both sides reach minSize. Cluster labels start at n; the root is n.
func condense(tree []linkNode, n, minSize int) []condensedRow {
	root := 2*n - 2
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

		cur := tree[node]
		lambda := 1 / math.Max(cur.dist, 1e-10)
		label := relabel[node]
		leftSize, rightSize := tree[cur.left].size, tree[cur.right].size

		fallOut := func(sub int) {
			leaves(tree, sub, n, func(p int) {
				rows = append(rows, condensedRow{parent: label, child: p, lambda: lambda, size: 1})
			})
		}

		switch {
		case leftSize >= minSize && rightSize >= minSize:
			for _, child := range []int{cur.left, cur.right} {
				relabel[child] = nextLabel
				rows = append(rows, condensedRow{parent: label, child: nextLabel, lambda: lambda, size: tree[child].size})
				nextLabel++
				queue = append(queue, child)
			}
		case leftSize < minSize && rightSize < minSize:
			fallOut(cur.left)
			fallOut(cur.right)
		case leftSize < minSize:
			fallOut(cur.left)
			relabel[cur.right] = label
			queue = append(queue, cur.right)
		default:
			fallOut(cur.right)
			relabel[cur.left] = label
			queue = append(queue, cur.left)
		}
	}
	return rows
}

func computeStability(rows []condensedRow, n int) map[int]float64 {
	birth := map[int]float64{n: 0}
	stability := map[int]float64{n: 0}
	for _, r := range rows {
		if r.child >= n {
			birth[r.child] = r.lambda
			stability[r.child] = 0
		}
	}
	for _, r := range rows {
		stability[r.parent] += (r.lambda - birth[r.parent]) * float64(r.size)
	}
	return stability
}

// selectClusters runs excess-of-mass selection bottom up.
func selectClusters(rows []condensedRow, stability map[int]float64, n int, allowSingle bool) map[int]bool {
	children := make(map[int][]int)
	for _, r := range rows {
		if r.child >= n {
			children[r.parent] = append(children[r.parent], r.child)
		}
	}

	nodes := make([]int, 0, len(stability))
	for c := range stability {
		if c == n && !allowSingle {
			continue
		}
		nodes = append(nodes, c)
	}
	// Children always carry larger labels than their parents.
	sort.Sort(sort.Reverse(sort.IntSlice(nodes)))

	score := make(map[int]float64, len(stability))
	for c, s := range stability {
		score[c] = s
	}
	selected := make(map[int]bool, len(nodes))
	for _, c := range nodes {
		var subtree float64
		for _, child := range children[c] {
			subtree += score[child]
		}
		if subtree > score[c] || score[c] <= 0 {
			score[c] = math.Max(subtree, score[c])
			continue
		}
		selected[c] = true
		var unselect func(int)
		unselect = func(node int) {
			for _, child := range children[node] {
				delete(selected, child)
				unselect(child)
			}
		}
		unselect(c)
	}
	return selected
}

func (h HDBSCAN) label(rows []condensedRow, selected map[int]bool, n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Outlier
	}

	parentOf := make(map[int]int)
	for _, r := range rows {
		if r.child >= n {
			parentOf[r.child] = r.parent
		}
	}

	pointLambda := make([]float64, n)
	pointParent := make([]int, n)
	for _, r := range rows {
		if r.child < n {
			pointLambda[r.child] = r.lambda
			pointParent[r.child] = r.parent
		}
	}

	resolved := make([]int, n)
	for p := 0; p < n; p++ {
		c := pointParent[p]
		for !selected[c] {
			up, ok := parentOf[c]
			if !ok {
				c = Outlier
				break
			}
			c = up
		}
		resolved[p] = c
	}

	var rootLambdas []float64
	for p, c := range resolved {
		if c == n {
			rootLambdas = append(rootLambdas, pointLambda[p])
		}
	}
	reference := median(rootLambdas)

	for p, c := range resolved {
		if c == Outlier {
			continue
		}
		if c == n && reference > 0 && gloshScore(pointLambda[p], reference) > h.OutlierThreshold {
			continue
		}
		labels[p] = c
	}
	return labels
}

func gloshScore(lambda, reference float64) float64 {
	return math.Max(0, 1-lambda/reference)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
