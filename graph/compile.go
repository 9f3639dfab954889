package graph

import "sort"

// App is an immutable, compiled workflow graph, safe to share across
// sessions. It is produced only by GraphBuilder.Compile.
type App struct {
	Nodes            map[NodeKind]Node
	Edges            map[NodeKind][]NodeKind
	ConditionalEdges []ConditionalEdge
	RuntimeConfig    RuntimeConfig
	Reducers         *ReducerRegistry
}

// Compile validates the builder's topology and, on success, produces an
// immutable App. Validation runs the following checks in order, each
// short-circuiting on first failure: missing entry, cycle detection,
// reachability (skipped when any conditional edge exists), duplicate
// edges, edges from End, and unknown node references.
func (b *GraphBuilder) Compile() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &App{
		Nodes:            b.nodes,
		Edges:            b.edges,
		ConditionalEdges: append([]ConditionalEdge(nil), b.conditionalEdges...),
		RuntimeConfig:    b.runtimeConfig,
		Reducers:         b.reducers,
	}, nil
}

func (b *GraphBuilder) validate() error {
	if !b.hasStartEdge() {
		return MissingEntryError{}
	}
	if cycle := b.detectCycle(); cycle != nil {
		return CycleDetectedError{Path: cycle}
	}
	if len(b.conditionalEdges) == 0 {
		if unreachable := b.detectUnreachable(); len(unreachable) > 0 {
			return UnreachableNodesError{Nodes: unreachable}
		}
		if noPath := b.detectNoPathToEnd(); len(noPath) > 0 {
			return NoPathToEndError{Nodes: noPath}
		}
	}
	if from, to, ok := b.detectDuplicateEdge(); ok {
		return DuplicateEdgeError{From: from, To: to}
	}
	for from := range b.edges {
		if from.IsEnd() {
			return EdgeFromEndError{}
		}
	}
	for from, tos := range b.edges {
		if from.IsCustom() {
			if _, ok := b.nodes[from]; !ok {
				return UnknownNodeError{Node: from}
			}
		}
		for _, to := range tos {
			if to.IsCustom() {
				if _, ok := b.nodes[to]; !ok {
					return UnknownNodeError{Node: to}
				}
			}
		}
	}
	return nil
}

func (b *GraphBuilder) hasStartEdge() bool {
	if len(b.edges[Start]) > 0 {
		return true
	}
	for _, ce := range b.conditionalEdges {
		if ce.From.IsStart() {
			return true
		}
	}
	return false
}

// detectCycle runs a DFS with white/gray/black coloring over unconditional
// edges only, returning the first cycle found with the repeated node
// appended to close the loop.
func (b *GraphBuilder) detectCycle() []NodeKind {
	const (
		white = iota
		gray
		black
	)
	colors := make(map[NodeKind]int)
	for from, tos := range b.edges {
		if _, ok := colors[from]; !ok {
			colors[from] = white
		}
		for _, to := range tos {
			if _, ok := colors[to]; !ok {
				colors[to] = white
			}
		}
	}

	var path []NodeKind
	var cycle []NodeKind
	var dfs func(n NodeKind)
	dfs = func(n NodeKind) {
		if cycle != nil {
			return
		}
		colors[n] = gray
		path = append(path, n)
		for _, neighbor := range b.edges[n] {
			if cycle != nil {
				return
			}
			switch colors[neighbor] {
			case white:
				dfs(neighbor)
			case gray:
				for i, p := range path {
					if p == neighbor {
						cycle = append(append([]NodeKind(nil), path[i:]...), neighbor)
						return
					}
				}
			case black:
			}
		}
		if cycle != nil {
			return
		}
		path = path[:len(path)-1]
		colors[n] = black
	}

	nodes := make([]NodeKind, 0, len(colors))
	for n := range colors {
		nodes = append(nodes, n)
	}
	sortNodeKinds(nodes)
	for _, n := range nodes {
		if colors[n] == white {
			dfs(n)
			if cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// detectUnreachable returns registered custom nodes with no path from
// Start via unconditional edges.
func (b *GraphBuilder) detectUnreachable() []NodeKind {
	reachable := map[NodeKind]bool{Start: true}
	queue := []NodeKind{Start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, neighbor := range b.edges[n] {
			if !reachable[neighbor] {
				reachable[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	var unreachable []NodeKind
	for n := range b.nodes {
		if !reachable[n] {
			unreachable = append(unreachable, n)
		}
	}
	sortNodeKinds(unreachable)
	return unreachable
}

// detectNoPathToEnd returns registered custom nodes with no path to End
// via unconditional edges.
func (b *GraphBuilder) detectNoPathToEnd() []NodeKind {
	reverse := make(map[NodeKind][]NodeKind)
	for from, tos := range b.edges {
		for _, to := range tos {
			reverse[to] = append(reverse[to], from)
		}
	}
	canReachEnd := map[NodeKind]bool{End: true}
	queue := []NodeKind{End}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, pred := range reverse[n] {
			if !canReachEnd[pred] {
				canReachEnd[pred] = true
				queue = append(queue, pred)
			}
		}
	}
	var noPath []NodeKind
	for n := range b.nodes {
		if !canReachEnd[n] {
			noPath = append(noPath, n)
		}
	}
	sortNodeKinds(noPath)
	return noPath
}

func (b *GraphBuilder) detectDuplicateEdge() (from, to NodeKind, ok bool) {
	froms := make([]NodeKind, 0, len(b.edges))
	for f := range b.edges {
		froms = append(froms, f)
	}
	sortNodeKinds(froms)
	for _, f := range froms {
		seen := make(map[NodeKind]bool)
		for _, t := range b.edges[f] {
			if seen[t] {
				return f, t, true
			}
			seen[t] = true
		}
	}
	return NodeKind{}, NodeKind{}, false
}

func sortNodeKinds(nodes []NodeKind) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Encode() < nodes[j].Encode() })
}
