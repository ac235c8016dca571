package repair

import (
	"sort"

	"stalemap/internal/engine/graph"
)

// subgraph is the fix-order view of the involved set: an edge dep ->
// dependent means dep must be fixed first, the inverse of the import
// direction.
type subgraph struct {
	nodes []string
	edges map[string][]string
}

func fixOrderSubgraph(g *graph.Graph, involved map[string]bool) *subgraph {
	nodes := make([]string, 0, len(involved))
	for key := range involved {
		nodes = append(nodes, key)
	}
	sort.Strings(nodes)

	edges := make(map[string][]string, len(nodes))
	for _, dependent := range nodes {
		for _, dep := range g.Files[dependent].Imports {
			if involved[dep] {
				edges[dep] = append(edges[dep], dependent)
			}
		}
	}
	for dep := range edges {
		sort.Strings(edges[dep])
	}

	return &subgraph{nodes: nodes, edges: edges}
}

// scc computes strongly connected components with an iterative Tarjan
// (index/lowlink/on-stack; a component closes when lowlink == index).
// Nodes and adjacency are visited in sorted order so component ids are
// deterministic.
func (s *subgraph) scc() (map[string]int, [][]string) {
	index := 0
	indexOf := make(map[string]int, len(s.nodes))
	lowlink := make(map[string]int, len(s.nodes))
	onStack := make(map[string]bool, len(s.nodes))
	stack := make([]string, 0, len(s.nodes))
	componentOf := make(map[string]int, len(s.nodes))
	var components [][]string

	type frame struct {
		node string
		next int
	}

	for _, start := range s.nodes {
		if _, seen := indexOf[start]; seen {
			continue
		}

		frames := []frame{{node: start}}
		indexOf[start] = index
		lowlink[start] = index
		index++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			neighbors := s.edges[top.node]

			if top.next < len(neighbors) {
				next := neighbors[top.next]
				top.next++

				if _, seen := indexOf[next]; !seen {
					indexOf[next] = index
					lowlink[next] = index
					index++
					stack = append(stack, next)
					onStack[next] = true
					frames = append(frames, frame{node: next})
				} else if onStack[next] && indexOf[next] < lowlink[top.node] {
					lowlink[top.node] = indexOf[next]
				}
				continue
			}

			// Node finished: close its component if it is a root, then
			// propagate its lowlink to the parent frame.
			if lowlink[top.node] == indexOf[top.node] {
				var component []string
				for {
					last := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[last] = false
					component = append(component, last)
					if last == top.node {
						break
					}
				}
				sort.Strings(component)
				id := len(components)
				components = append(components, component)
				for _, member := range component {
					componentOf[member] = id
				}
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].node
				if lowlink[top.node] < lowlink[parent] {
					lowlink[parent] = lowlink[top.node]
				}
			}
		}
	}

	return componentOf, components
}

// suggestedOrder condenses the subgraph over its components and
// topologically sorts the condensation (Kahn, ready queue of zero-indegree
// components, ties broken by component id). The result is a total order
// even in the presence of cycles; each cyclic cluster is one atomic unit
// whose members appear together, sorted by name.
func (s *subgraph) suggestedOrder() []string {
	componentOf, components := s.scc()

	succ := make(map[int]map[int]bool, len(components))
	indegree := make([]int, len(components))
	for dep, dependents := range s.edges {
		from := componentOf[dep]
		for _, dependent := range dependents {
			to := componentOf[dependent]
			if from == to {
				continue
			}
			if succ[from] == nil {
				succ[from] = make(map[int]bool)
			}
			if !succ[from][to] {
				succ[from][to] = true
				indegree[to]++
			}
		}
	}

	ready := make([]int, 0, len(components))
	for id := range components {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Ints(ready)

	order := make([]string, 0, len(s.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, components[id]...)

		var freed []int
		for to := range succ[id] {
			indegree[to]--
			if indegree[to] == 0 {
				freed = append(freed, to)
			}
		}
		sort.Ints(freed)
		ready = mergeSorted(ready, freed)
	}

	return order
}

// layer partitions the given files into maximum-parallelism batches by
// repeatedly extracting all currently zero-indegree nodes. If a residual
// cycle leaves no node ready, the minimum-indegree nodes are forcibly
// extracted so the loop always terminates.
func (s *subgraph) layer(files map[string]bool) [][]string {
	indegree := make(map[string]int, len(files))
	for file := range files {
		indegree[file] = 0
	}
	for dep, dependents := range s.edges {
		if !files[dep] {
			continue
		}
		for _, dependent := range dependents {
			if files[dependent] {
				indegree[dependent]++
			}
		}
	}

	remaining := make(map[string]bool, len(files))
	for file := range files {
		remaining[file] = true
	}

	batches := [][]string{}
	for len(remaining) > 0 {
		var batch []string
		for file := range remaining {
			if indegree[file] == 0 {
				batch = append(batch, file)
			}
		}

		if len(batch) == 0 {
			// Residual cycle: break the tie at the minimum indegree.
			min := -1
			for file := range remaining {
				if min == -1 || indegree[file] < min {
					min = indegree[file]
				}
			}
			for file := range remaining {
				if indegree[file] == min {
					batch = append(batch, file)
				}
			}
		}

		sort.Strings(batch)
		batches = append(batches, batch)

		for _, file := range batch {
			delete(remaining, file)
			for _, dependent := range s.edges[file] {
				if remaining[dependent] {
					indegree[dependent]--
				}
			}
		}
	}

	return batches
}

func mergeSorted(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
