package workflow

import (
	"fmt"
	"slices"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
)

const graphOp = "workflow graph"

func graphError(err error) *execerr.Error {
	return &execerr.Error{Kind: execerr.KindValidation, Op: graphOp, Err: err}
}

type graph struct {
	nodes    []*models.Node
	index    map[string]int
	adjacent [][]int
}

func newGraph(workflow *models.Workflow) (*graph, error) {
	g := &graph{
		nodes:    workflow.Nodes,
		index:    make(map[string]int, len(workflow.Nodes)),
		adjacent: make([][]int, len(workflow.Nodes)),
	}

	for i, node := range workflow.Nodes {
		if _, exists := g.index[node.ID]; exists {
			return nil, graphError(fmt.Errorf("duplicate node id %q", node.ID))
		}

		g.index[node.ID] = i
	}

	for _, edge := range workflow.Edges {
		source, ok := g.index[edge.Source]
		if !ok {
			return nil, graphError(fmt.Errorf("edge %s references unknown source node %q", edge.ID, edge.Source))
		}

		target, ok := g.index[edge.Target]
		if !ok {
			return nil, graphError(fmt.Errorf("edge %s references unknown target node %q", edge.ID, edge.Target))
		}

		g.adjacent[source] = append(g.adjacent[source], target)
	}

	return g, nil
}

// sort runs Kahn's algorithm over the included nodes. The ready set is kept
// ordered by node position so ties resolve to creation order.
func (g *graph) sort(included []bool) ([]int, error) {
	inDegree := make([]int, len(g.nodes))
	total := 0

	for source, targets := range g.adjacent {
		if !included[source] {
			continue
		}

		for _, target := range targets {
			inDegree[target]++
		}
	}

	ready := make([]int, 0, len(g.nodes))

	for i := range g.nodes {
		if !included[i] {
			continue
		}

		total++

		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, total)

	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, target := range g.adjacent[current] {
			inDegree[target]--
			if inDegree[target] == 0 {
				position, _ := slices.BinarySearch(ready, target)
				ready = slices.Insert(ready, position, target)
			}
		}
	}

	if len(order) != total {
		return nil, graphError(execerr.ErrCyclicWorkflow)
	}

	return order, nil
}

// reachable marks every node reachable from a trigger node.
func (g *graph) reachable() ([]bool, error) {
	included := make([]bool, len(g.nodes))
	queue := make([]int, 0, len(g.nodes))

	for i, node := range g.nodes {
		if node.Type.IsTrigger() {
			included[i] = true
			queue = append(queue, i)
		}
	}

	if len(queue) == 0 {
		return nil, graphError(execerr.ErrNoTrigger)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.adjacent[current] {
			if !included[target] {
				included[target] = true
				queue = append(queue, target)
			}
		}
	}

	return included, nil
}

// ExecutionOrder returns the nodes reachable from the workflow's trigger
// nodes in topological order. Nodes that become ready together run in the
// order they appear in workflow.Nodes. Errors are non-retriable.
func ExecutionOrder(workflow *models.Workflow) ([]*models.Node, error) {
	g, err := newGraph(workflow)
	if err != nil {
		return nil, err
	}

	included, err := g.reachable()
	if err != nil {
		return nil, err
	}

	order, err := g.sort(included)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.Node, 0, len(order))
	for _, i := range order {
		nodes = append(nodes, g.nodes[i])
	}

	return nodes, nil
}

// ValidateGraph checks that every edge references existing nodes and that the
// whole graph, reachable or not, is acyclic.
func ValidateGraph(workflow *models.Workflow) error {
	g, err := newGraph(workflow)
	if err != nil {
		return err
	}

	all := make([]bool, len(g.nodes))
	for i := range all {
		all[i] = true
	}

	_, err = g.sort(all)

	return err
}
