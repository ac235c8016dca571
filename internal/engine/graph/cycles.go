package graph

import (
	"sort"
	"strings"
)

type color uint8

const (
	white color = iota // unvisited
	gray               // on the current recursion stack
	black              // fully processed
)

// DetectCycles finds module-level dependency cycles with an iterative
// three-color depth-first search. An edge into a gray node closes a cycle:
// the slice of the current path from that node to the top. Each cycle is
// canonicalized by rotating it to start at its lexicographically smallest
// member, and duplicates are suppressed by that canonical form.
//
// The result is stable across runs regardless of map iteration order.
func (g *Graph) DetectCycles() [][]string {
	edges := g.ModuleEdges()

	nodes := make(map[string]bool, len(edges))
	for from, targets := range edges {
		nodes[from] = true
		for to := range targets {
			nodes[to] = true
		}
	}
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	adjacency := make(map[string][]string, len(edges))
	for from, targets := range edges {
		neighbors := make([]string, 0, len(targets))
		for to := range targets {
			neighbors = append(neighbors, to)
		}
		sort.Strings(neighbors)
		adjacency[from] = neighbors
	}

	colors := make(map[string]color, len(names))
	pathIndex := make(map[string]int, len(names))
	var path []string
	var cycles [][]string
	seen := make(map[string]bool)

	type frame struct {
		node string
		next int
	}

	for _, start := range names {
		if colors[start] != white {
			continue
		}

		stack := []frame{{node: start}}
		colors[start] = gray
		pathIndex[start] = len(path)
		path = append(path, start)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adjacency[top.node]

			if top.next < len(neighbors) {
				next := neighbors[top.next]
				top.next++

				switch colors[next] {
				case gray:
					cycle := append([]string(nil), path[pathIndex[next]:]...)
					cycle = canonicalRotation(cycle)
					id := strings.Join(cycle, "\x00")
					if !seen[id] {
						seen[id] = true
						cycles = append(cycles, cycle)
					}
				case white:
					colors[next] = gray
					pathIndex[next] = len(path)
					path = append(path, next)
					stack = append(stack, frame{node: next})
				}
				continue
			}

			colors[top.node] = black
			delete(pathIndex, top.node)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}

	return cycles
}

// canonicalRotation rotates a cycle so it starts at its lexicographically
// smallest member, giving every cycle a stable identity.
func canonicalRotation(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	smallest := 0
	for i, name := range cycle {
		if name < cycle[smallest] {
			smallest = i
		}
	}
	if smallest == 0 {
		return cycle
	}
	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[smallest:]...)
	rotated = append(rotated, cycle[:smallest]...)
	return rotated
}
