package services

import (
	"fmt"
	"sort"

	"github.com/ezenkico/deploy-commander/sidecar/models"
)

func containerGraph(template *models.TaskTemplate) map[string][]string {
	graph := make(map[string][]string)
	for _, c := range template.Containers() {
		graph[c.Name] = c.DependsOn
	}
	return graph
}

func CheckDependsOnContainersExist(graph map[string][]string) error {
	// Stable iteration (nicer error messages)
	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		for _, dep := range graph[name] {
			if _, ok := graph[dep]; !ok {
				return fmt.Errorf("container %q depends_on %q, but %q does not exist", name, dep, dep)
			}
		}
	}

	return nil
}

func CheckCircularDependencies(graph map[string][]string) error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]uint8, len(graph))
	parent := make(map[string]string, len(graph))

	var dfs func(string) error
	dfs = func(node string) error {
		switch state[node] {
		case visiting:
			return fmt.Errorf("circular dependency detected: %s", reconstructCycle(parent, node))
		case visited:
			return nil
		}

		state[node] = visiting
		for _, dep := range graph[node] {
			if _, ok := graph[dep]; !ok {
				continue
			}
			if _, ok := parent[dep]; !ok {
				parent[dep] = node
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}
		state[node] = visited
		return nil
	}

	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, node := range keys {
		if state[node] == unvisited {
			if err := dfs(node); err != nil {
				return err
			}
		}
	}

	return nil
}

func reconstructCycle(parent map[string]string, start string) string {
	seen := map[string]bool{start: true}
	path := []string{start}

	cur := start
	for {
		p, ok := parent[cur]
		if !ok {
			break
		}
		path = append(path, p)
		if seen[p] {
			break
		}
		seen[p] = true
		cur = p
	}

	// parent pointers run backwards
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if len(path) > 0 && path[len(path)-1] != path[0] {
		path = append(path, path[0])
	}

	out := ""
	for i, s := range path {
		if i > 0 {
			out += " -> "
		}
		out += fmt.Sprintf("%q", s)
	}
	return out
}

// StartOrder returns the template's containers so that every container comes
// after the containers it depends on.
func StartOrder(template *models.TaskTemplate) ([]models.ContainerSpec, error) {
	graph := containerGraph(template)
	if err := CheckDependsOnContainersExist(graph); err != nil {
		return nil, err
	}
	if err := CheckCircularDependencies(graph); err != nil {
		return nil, err
	}

	started := make(map[string]struct{}, len(graph))
	pending := template.Containers()
	out := make([]models.ContainerSpec, 0, len(pending))

	for len(pending) > 0 {
		var notRun []models.ContainerSpec
		for _, c := range pending {
			ready := true
			for _, dep := range c.DependsOn {
				if _, ok := started[dep]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				notRun = append(notRun, c)
				continue
			}
			started[c.Name] = struct{}{}
			out = append(out, c)
		}
		pending = notRun
	}

	return out, nil
}
