package engine

import (
	"fmt"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Node — стадия в DAG.
type Node struct {
	// ID — id узла стадии в графе.
	ID string

	// Label — имя стадии.
	Label string

	// Category — имя категории.
	Category string

	// InDegree — количество входящих рёбер.
	InDegree int

	// DependsOn — стадии, после которых идёт эта.
	DependsOn []*Node

	// Dependents — стадии, идущие после этой.
	Dependents []*Node
}

// DAG — направленный ациклический граф стадий flow.
//
// Строится поверх скомпилированного Graph: категории в DAG не входят,
// рёбра берутся как есть (внутри категорий и между ними).
type DAG struct {
	// Nodes — все стадии (id → Node).
	Nodes map[string]*Node

	// RootNodes — стадии без входящих рёбер, в порядке появления в графе.
	RootNodes []*Node

	// Order — топологически отсортированный список стадий.
	Order []*Node
}

// BuildDAG строит DAG стадий и проверяет инварианты графа:
// каждое ребро и каждая запись индекса категорий ссылаются на
// существующую стадию, циклов нет.
func BuildDAG(graph *domain.Graph) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node),
		RootNodes: make([]*Node, 0),
	}

	// Порядок появления нужен для детерминированной сортировки
	ordered := make([]*Node, 0, len(graph.Nodes))
	for i := range graph.Nodes {
		n := &graph.Nodes[i]
		if !n.IsStage() {
			continue
		}
		node := &Node{
			ID:         n.ID,
			Label:      n.Data.Label,
			Category:   n.Data.Category,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[n.ID] = node
		ordered = append(ordered, node)
	}

	for _, edge := range graph.Edges {
		from, ok := dag.Nodes[edge.Source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingNode, edge.Source)
		}
		to, ok := dag.Nodes[edge.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingNode, edge.Target)
		}
		dag.addEdge(from, to)
	}

	for category, ids := range graph.Categories {
		for _, id := range ids {
			if _, ok := dag.Nodes[id]; !ok {
				return nil, fmt.Errorf("%w: %s (category %s)", ErrMissingNode, id, category)
			}
		}
	}

	for _, node := range ordered {
		if node.InDegree == 0 {
			dag.RootNodes = append(dag.RootNodes, node)
		}
	}

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами, игнорируя дубликаты.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetNode возвращает узел по id.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество стадий.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Labels возвращает имена стадий в топологическом порядке.
func (d *DAG) Labels() []string {
	labels := make([]string, len(d.Order))
	for i, node := range d.Order {
		labels[i] = node.Label
	}
	return labels
}

// Upstream возвращает id всех стадий, предшествующих данной (транзитивно).
func (d *DAG) Upstream(id string) []string {
	node, ok := d.Nodes[id]
	if !ok {
		return nil
	}

	visited := make(map[string]bool)
	result := make([]string, 0)
	stack := append([]*Node(nil), node.DependsOn...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.ID] {
			continue
		}
		visited[n.ID] = true
		result = append(result, n.ID)
		stack = append(stack, n.DependsOn...)
	}

	return result
}
