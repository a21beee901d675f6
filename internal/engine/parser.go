package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Токены грамматики описания flow.
const (
	sequenceToken = "->"
	parallelToken = ","
)

// Раскладка узлов для фронтенда.
const (
	categoryStartX = 100
	categoryStartY = 100
	categoryStepX  = 600
	categoryWidth  = 500
	categoryHeight = 400
	stageStartX    = 50
	stageStartY    = 80
	stageStepX     = 150
	edgeType       = "smoothstep"
)

// categoryPattern — блок Category{body} без вложенных скобок.
var categoryPattern = regexp.MustCompile(`([A-Za-z0-9_-]+)\{([^{}]+)\}`)

// Result — результат компиляции описания flow.
type Result struct {
	// Graph — граф (возможно частичный).
	Graph *domain.Graph

	// Warnings — пропущенные фрагменты описания.
	Warnings []*ParseAnomaly
}

// HasWarnings возвращает true, если при разборе что-то было пропущено.
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Parse компилирует описание flow в граф, отбрасывая предупреждения.
func Parse(overall string, subStages map[string]map[string]string) *domain.Graph {
	return Compile(overall, subStages).Graph
}

// Compile компилирует описание flow в граф.
//
// overall — категории в формате Category{Stage1->Stage2}, идущие подряд.
// subStages — категория → стадия → описание подстадий.
//
// Компиляция никогда не падает: некорректные блоки пропускаются
// и попадают в Warnings. Результат детерминирован: идентификаторы
// выводятся из имён категорий, стадий и подстадий.
func Compile(overall string, subStages map[string]map[string]string) *Result {
	c := &compiler{
		graph: &domain.Graph{
			Nodes:      make([]domain.Node, 0),
			Edges:      make([]domain.Edge, 0),
			Categories: make(map[string][]string),
		},
		stageIndex: make(map[string]int),
	}

	c.parseOverall(overall)
	c.parseSubStages(subStages)

	return &Result{Graph: c.graph, Warnings: c.warnings}
}

// CategoryID возвращает id узла категории.
func CategoryID(category string) string {
	return "category-" + category
}

// StageID возвращает id узла стадии.
func StageID(category, stage string) string {
	return "stage-" + category + "-" + stage
}

// SubStageID возвращает id подстадии.
func SubStageID(category, stage, subStage string) string {
	return "substage-" + category + "-" + stage + "-" + subStage
}

// EdgeID возвращает id ребра.
func EdgeID(source, target string) string {
	return "edge-" + source + "-" + target
}

type compiler struct {
	graph    *domain.Graph
	warnings []*ParseAnomaly

	// stageIndex — id стадии → индекс в graph.Nodes.
	stageIndex map[string]int
}

func (c *compiler) warn(category, stage, message string, err error) {
	c.warnings = append(c.warnings, newAnomaly(category, stage, message, err))
}

// parseOverall разбирает категории и строит рёбра.
func (c *compiler) parseOverall(overall string) {
	matches := categoryPattern.FindAllStringSubmatchIndex(overall, -1)
	if len(matches) == 0 {
		c.warn("", "", "no Category{...} blocks found", ErrEmptyDefinition)
		return
	}

	x := categoryStartX
	lastEnd := 0
	prevLastStage := ""

	for _, m := range matches {
		c.checkGap(overall[lastEnd:m[0]])
		lastEnd = m[1]

		name := overall[m[2]:m[3]]
		body := overall[m[4]:m[5]]

		if _, exists := c.graph.Categories[name]; exists {
			c.warn(name, "", "duplicate category block skipped", ErrDuplicateCategory)
			continue
		}

		stageIDs := c.addCategory(name, body, x)
		if len(stageIDs) == 0 {
			continue
		}
		x += categoryStepX

		// Связываем категории: последняя стадия предыдущей → первая текущей
		if prevLastStage != "" {
			c.addEdge(prevLastStage, stageIDs[0], domain.EdgeKindCategory)
		}
		prevLastStage = stageIDs[len(stageIDs)-1]
	}

	c.checkGap(overall[lastEnd:])
}

// checkGap фиксирует непустой текст между блоками.
func (c *compiler) checkGap(gap string) {
	gap = strings.TrimSpace(gap)
	if gap == "" {
		return
	}
	c.warn("", "", fmt.Sprintf("skipped %q", gap), ErrUnparsedText)
}

// addCategory добавляет узел категории и её стадии.
// Возвращает id добавленных стадий.
func (c *compiler) addCategory(name, body string, x int) []string {
	stages := make([]string, 0)
	seen := make(map[string]bool)

	for _, raw := range strings.Split(body, sequenceToken) {
		stage := strings.TrimSpace(raw)
		if stage == "" {
			c.warn(name, "", "empty stage name skipped", ErrEmptyStageName)
			continue
		}
		if seen[stage] {
			c.warn(name, stage, "duplicate stage skipped", ErrDuplicateStage)
			continue
		}
		seen[stage] = true
		stages = append(stages, stage)
	}

	if len(stages) == 0 {
		c.warn(name, "", "category skipped", ErrEmptyCategory)
		return nil
	}

	categoryID := CategoryID(name)
	stageIDs := make([]string, 0, len(stages))
	for _, stage := range stages {
		stageIDs = append(stageIDs, StageID(name, stage))
	}

	c.graph.Nodes = append(c.graph.Nodes, domain.Node{
		ID:   categoryID,
		Type: domain.NodeTypeCategory,
		Data: domain.NodeData{
			Label:  name,
			Stages: stageIDs,
		},
		Position: domain.Position{X: x, Y: categoryStartY},
		Style:    &domain.NodeStyle{Width: categoryWidth, Height: categoryHeight},
	})
	c.graph.Categories[name] = append([]string(nil), stageIDs...)

	stageX := stageStartX
	for i, stage := range stages {
		c.stageIndex[stageIDs[i]] = len(c.graph.Nodes)
		c.graph.Nodes = append(c.graph.Nodes, domain.Node{
			ID:   stageIDs[i],
			Type: domain.NodeTypeStage,
			Data: domain.NodeData{
				Label:    stage,
				Category: name,
				Status:   domain.StatusPending,
			},
			Position:   domain.Position{X: stageX, Y: stageStartY},
			ParentNode: categoryID,
			Extent:     "parent",
		})
		stageX += stageStepX

		if i > 0 {
			c.addEdge(stageIDs[i-1], stageIDs[i], domain.EdgeKindStage)
		}
	}

	return stageIDs
}

// addEdge добавляет ребро.
func (c *compiler) addEdge(source, target string, kind domain.EdgeKind) {
	c.graph.Edges = append(c.graph.Edges, domain.Edge{
		ID:       EdgeID(source, target),
		Source:   source,
		Target:   target,
		Kind:     kind,
		Animated: true,
		Type:     edgeType,
	})
}

// parseSubStages привязывает подстадии к уже построенным стадиям.
// Ключи обходятся в отсортированном порядке, чтобы порядок
// предупреждений не зависел от порядка обхода map.
func (c *compiler) parseSubStages(subStages map[string]map[string]string) {
	for _, category := range sortedKeys(subStages) {
		stages := subStages[category]
		for _, stage := range sortedKeys(stages) {
			idx, ok := c.stageIndex[StageID(category, stage)]
			if !ok {
				c.warn(category, stage, "sub-stages for unknown stage skipped", ErrUnknownStage)
				continue
			}
			c.graph.Nodes[idx].Data.SubStages = c.buildSubStages(category, stage, stages[stage])
		}
	}
}

// buildSubStages разбирает описание подстадий одной стадии.
//
// Содержит "->" — последовательные (цепочка через Next);
// иначе содержит "," — параллельные; иначе — одна подстадия.
func (c *compiler) buildSubStages(category, stage, spec string) []domain.SubStage {
	var (
		kind  domain.SubStageKind
		names []string
	)

	switch {
	case strings.Contains(spec, sequenceToken):
		kind = domain.SubStageSequential
		names = strings.Split(spec, sequenceToken)
	case strings.Contains(spec, parallelToken):
		kind = domain.SubStageParallel
		names = strings.Split(spec, parallelToken)
	default:
		kind = domain.SubStageSingle
		names = []string{spec}
	}

	result := make([]domain.SubStage, 0, len(names))
	seen := make(map[string]bool)

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			c.warn(category, stage, "empty sub-stage name skipped", ErrEmptySubStage)
			continue
		}
		if seen[name] {
			c.warn(category, stage, fmt.Sprintf("duplicate sub-stage %q skipped", name), ErrDuplicateSubStage)
			continue
		}
		seen[name] = true

		sub := domain.SubStage{
			ID:   SubStageID(category, stage, name),
			Name: name,
			Kind: kind,
		}
		if kind == domain.SubStageSequential && len(result) > 0 {
			result[len(result)-1].Next = sub.ID
		}
		result = append(result, sub)
	}

	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
