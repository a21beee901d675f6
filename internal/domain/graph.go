package domain

// NodeType — тип узла графа.
type NodeType string

const (
	// NodeTypeCategory — категория (визуальный кластер стадий).
	NodeTypeCategory NodeType = "category"

	// NodeTypeStage — стадия внутри категории.
	NodeTypeStage NodeType = "stage"
)

// SubStageKind — вид подстадии.
type SubStageKind string

const (
	// SubStageSequential — подстадии выполняются цепочкой (A->B->C).
	SubStageSequential SubStageKind = "sequential"

	// SubStageParallel — независимые подстадии (A,B,C).
	SubStageParallel SubStageKind = "parallel"

	// SubStageSingle — единственная подстадия.
	SubStageSingle SubStageKind = "single"
)

// EdgeKind — происхождение ребра.
type EdgeKind string

const (
	// EdgeKindStage — порядок стадий внутри категории.
	EdgeKindStage EdgeKind = "stage"

	// EdgeKindCategory — переход из последней стадии категории в первую стадию следующей.
	EdgeKindCategory EdgeKind = "category"
)

// Graph — скомпилированный граф flow.
//
// Graph строится компилятором из текстового описания и никогда
// не редактируется вручную: рёбра всегда выводятся из порядка стадий.
type Graph struct {
	// Nodes — узлы в порядке появления в тексте (категория, затем её стадии).
	Nodes []Node `json:"nodes"`

	// Edges — производные рёбра.
	Edges []Edge `json:"edges"`

	// Categories — индекс: имя категории → упорядоченные id стадий.
	Categories map[string][]string `json:"categories"`
}

// Node — узел графа: категория или стадия.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`

	// Position — координаты для раскладки (для стадий — относительно категории).
	Position Position `json:"position"`

	// ParentNode — id категории-владельца (только для стадий).
	ParentNode string `json:"parentNode,omitempty"`

	// Extent — ограничение перемещения узла ("parent" для стадий).
	Extent string `json:"extent,omitempty"`

	// Style — размеры кластера (только для категорий).
	Style *NodeStyle `json:"style,omitempty"`
}

// NodeData — отображаемые данные узла.
type NodeData struct {
	// Label — отображаемое имя категории или стадии.
	Label string `json:"label"`

	// Stages — id стадий категории в порядке следования.
	Stages []string `json:"stages,omitempty"`

	// Category — имя категории-владельца (для стадий).
	Category string `json:"category,omitempty"`

	// Status — текущий канонический статус стадии.
	Status Status `json:"status,omitempty"`

	// SubStages — подстадии стадии.
	SubStages []SubStage `json:"subStages,omitempty"`
}

// SubStage — описание подстадии.
type SubStage struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind SubStageKind `json:"type"`

	// Next — id следующей подстадии (только для sequential).
	Next string `json:"next,omitempty"`
}

// Position — координаты узла.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodeStyle — размеры узла-категории.
type NodeStyle struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Edge — направленное ребро между стадиями.
type Edge struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Kind     EdgeKind `json:"kind"`
	Animated bool     `json:"animated"`
	Type     string   `json:"type"`
}

// IsCategory возвращает true для узла-категории.
func (n *Node) IsCategory() bool {
	return n.Type == NodeTypeCategory
}

// IsStage возвращает true для узла-стадии.
func (n *Node) IsStage() bool {
	return n.Type == NodeTypeStage
}

// Node возвращает узел по id или nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// CategoryCount возвращает количество категорий.
func (g *Graph) CategoryCount() int {
	return len(g.Categories)
}

// StageLabels возвращает имена всех стадий в порядке появления.
func (g *Graph) StageLabels() []string {
	labels := make([]string, 0, len(g.Nodes))
	for i := range g.Nodes {
		if g.Nodes[i].IsStage() {
			labels = append(labels, g.Nodes[i].Data.Label)
		}
	}
	return labels
}

// Clone возвращает глубокую копию графа.
// Реестр отдаёт наружу только копии, чтобы запись статусов
// не гонялась с читателями.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}

	out := &Graph{
		Nodes:      make([]Node, len(g.Nodes)),
		Edges:      make([]Edge, len(g.Edges)),
		Categories: make(map[string][]string, len(g.Categories)),
	}

	for i, n := range g.Nodes {
		n.Data.Stages = append([]string(nil), n.Data.Stages...)
		n.Data.SubStages = append([]SubStage(nil), n.Data.SubStages...)
		if n.Style != nil {
			style := *n.Style
			n.Style = &style
		}
		out.Nodes[i] = n
	}
	copy(out.Edges, g.Edges)

	for name, ids := range g.Categories {
		out.Categories[name] = append([]string(nil), ids...)
	}

	return out
}
