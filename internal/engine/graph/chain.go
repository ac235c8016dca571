package graph

import "sort"

// FindChain returns the shortest forward import chain between two files,
// or false when no chain exists. Neighbors are explored in sorted order so
// that ties resolve the same way on every run.
func (g *Graph) FindChain(from, to string) ([]string, bool) {
	if _, ok := g.Files[from]; !ok {
		return nil, false
	}
	if _, ok := g.Files[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := append([]string(nil), g.Files[curr].Imports...)
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if _, ok := g.Files[next]; !ok {
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
