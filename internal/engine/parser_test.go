package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/Flowtrack/internal/domain"
)

func TestCompile_TwoCategories(t *testing.T) {
	result := Compile("A{s1->s2}B{s3}", nil)
	graph := result.Graph

	if result.HasWarnings() {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}

	var categories, stages int
	for _, n := range graph.Nodes {
		switch n.Type {
		case domain.NodeTypeCategory:
			categories++
		case domain.NodeTypeStage:
			stages++
		}
	}
	if categories != 2 {
		t.Errorf("expected 2 category nodes, got %d", categories)
	}
	if stages != 3 {
		t.Errorf("expected 3 stage nodes, got %d", stages)
	}

	// Рёбра: s1→s2 внутри A, s2→s3 между категориями
	if len(graph.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(graph.Edges))
	}
	if graph.Edges[0].Source != "stage-A-s1" || graph.Edges[0].Target != "stage-A-s2" {
		t.Errorf("unexpected first edge: %+v", graph.Edges[0])
	}
	if graph.Edges[0].Kind != domain.EdgeKindStage {
		t.Errorf("expected stage edge, got %s", graph.Edges[0].Kind)
	}
	if graph.Edges[1].Source != "stage-A-s2" || graph.Edges[1].Target != "stage-B-s3" {
		t.Errorf("unexpected inter-category edge: %+v", graph.Edges[1])
	}
	if graph.Edges[1].Kind != domain.EdgeKindCategory {
		t.Errorf("expected category edge, got %s", graph.Edges[1].Kind)
	}
	if graph.Edges[1].ID != "edge-stage-A-s2-stage-B-s3" {
		t.Errorf("unexpected edge id: %s", graph.Edges[1].ID)
	}

	expected := map[string][]string{
		"A": {"stage-A-s1", "stage-A-s2"},
		"B": {"stage-B-s3"},
	}
	if !reflect.DeepEqual(graph.Categories, expected) {
		t.Errorf("expected categories %v, got %v", expected, graph.Categories)
	}
}

func TestCompile_NodeMetadata(t *testing.T) {
	graph := Parse("Ingest{ load -> clean }Publish{ export }", nil)

	cat := graph.Node("category-Ingest")
	if cat == nil {
		t.Fatal("category node not found")
	}
	if !reflect.DeepEqual(cat.Data.Stages, []string{"stage-Ingest-load", "stage-Ingest-clean"}) {
		t.Errorf("unexpected category stages: %v", cat.Data.Stages)
	}
	if cat.Position.X != 100 || cat.Style == nil || cat.Style.Width != 500 {
		t.Errorf("unexpected category layout: %+v %+v", cat.Position, cat.Style)
	}

	clean := graph.Node("stage-Ingest-clean")
	if clean == nil {
		t.Fatal("stage node not found (names should be trimmed)")
	}
	if clean.Data.Status != domain.StatusPending {
		t.Errorf("expected default status pending, got %s", clean.Data.Status)
	}
	if clean.ParentNode != "category-Ingest" || clean.Data.Category != "Ingest" {
		t.Errorf("unexpected stage owner: %s / %s", clean.ParentNode, clean.Data.Category)
	}
	if clean.Position.X != 200 {
		t.Errorf("expected second stage at x=200, got %d", clean.Position.X)
	}

	publish := graph.Node("category-Publish")
	if publish.Position.X != 700 {
		t.Errorf("expected second category at x=700, got %d", publish.Position.X)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	overall := "A{s1->s2->s3}B{t1->t2}C{u1}"
	subStages := map[string]map[string]string{
		"A": {"s1": "x->y->z", "s2": "p,q"},
		"B": {"t1": "only"},
	}

	first := Compile(overall, subStages)
	second := Compile(overall, subStages)

	if !reflect.DeepEqual(first.Graph, second.Graph) {
		t.Error("graphs differ between runs")
	}

	ids := func(g *domain.Graph) []string {
		out := make([]string, 0)
		for _, n := range g.Nodes {
			out = append(out, n.ID)
		}
		for _, e := range g.Edges {
			out = append(out, e.ID)
		}
		return out
	}
	if !reflect.DeepEqual(ids(first.Graph), ids(second.Graph)) {
		t.Error("node/edge ids differ between runs")
	}
}

func TestCompile_SequentialSubStages(t *testing.T) {
	graph := Parse("A{s1}", map[string]map[string]string{
		"A": {"s1": "x->y->z"},
	})

	subs := graph.Node("stage-A-s1").Data.SubStages
	if len(subs) != 3 {
		t.Fatalf("expected 3 sub-stages, got %d", len(subs))
	}

	for _, sub := range subs {
		if sub.Kind != domain.SubStageSequential {
			t.Errorf("expected sequential, got %s", sub.Kind)
		}
	}
	if subs[0].Next != subs[1].ID {
		t.Errorf("expected first.next=%s, got %s", subs[1].ID, subs[0].Next)
	}
	if subs[1].Next != subs[2].ID {
		t.Errorf("expected second.next=%s, got %s", subs[2].ID, subs[1].Next)
	}
	if subs[2].Next != "" {
		t.Errorf("last sub-stage should have no next, got %s", subs[2].Next)
	}
	if subs[0].ID != "substage-A-s1-x" {
		t.Errorf("unexpected sub-stage id: %s", subs[0].ID)
	}
}

func TestCompile_ParallelSubStages(t *testing.T) {
	graph := Parse("A{s1}", map[string]map[string]string{
		"A": {"s1": "x, y"},
	})

	subs := graph.Node("stage-A-s1").Data.SubStages
	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-stages, got %d", len(subs))
	}
	for _, sub := range subs {
		if sub.Kind != domain.SubStageParallel {
			t.Errorf("expected parallel, got %s", sub.Kind)
		}
		if sub.Next != "" {
			t.Errorf("parallel sub-stage %s should have no next", sub.ID)
		}
	}
	if subs[1].Name != "y" {
		t.Errorf("expected trimmed name y, got %q", subs[1].Name)
	}
}

func TestCompile_SingleSubStage(t *testing.T) {
	graph := Parse("A{s1}", map[string]map[string]string{
		"A": {"s1": " validate "},
	})

	subs := graph.Node("stage-A-s1").Data.SubStages
	if len(subs) != 1 {
		t.Fatalf("expected 1 sub-stage, got %d", len(subs))
	}
	if subs[0].Kind != domain.SubStageSingle || subs[0].Name != "validate" {
		t.Errorf("unexpected sub-stage: %+v", subs[0])
	}
}

func TestCompile_UnknownSubStageKeySkipped(t *testing.T) {
	result := Compile("A{s1}", map[string]map[string]string{
		"A": {"missing": "x"},
		"Z": {"s1": "y"},
	})

	if len(result.Graph.Node("stage-A-s1").Data.SubStages) != 0 {
		t.Error("sub-stages should not be attached to s1")
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(result.Warnings))
	}
	for _, w := range result.Warnings {
		if !errors.Is(w, ErrUnknownStage) {
			t.Errorf("expected ErrUnknownStage, got %v", w)
		}
	}
}

func TestCompile_MalformedInputIsSkipped(t *testing.T) {
	tests := []struct {
		name       string
		overall    string
		wantStages int
		wantErr    error
	}{
		{
			name:       "no blocks",
			overall:    "just some text",
			wantStages: 0,
			wantErr:    ErrEmptyDefinition,
		},
		{
			name:       "unclosed block",
			overall:    "A{s1->s2}B{s3",
			wantStages: 2,
			wantErr:    ErrUnparsedText,
		},
		{
			name:       "empty stage name",
			overall:    "A{s1->->s2}",
			wantStages: 2,
			wantErr:    ErrEmptyStageName,
		},
		{
			name:       "duplicate stage",
			overall:    "A{s1->s2->s1}",
			wantStages: 2,
			wantErr:    ErrDuplicateStage,
		},
		{
			name:       "duplicate category",
			overall:    "A{s1}A{s2}",
			wantStages: 1,
			wantErr:    ErrDuplicateCategory,
		},
		{
			name:       "category without stages",
			overall:    "A{ -> }B{s1}",
			wantStages: 1,
			wantErr:    ErrEmptyCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Compile(tt.overall, nil)

			if got := len(result.Graph.StageLabels()); got != tt.wantStages {
				t.Errorf("expected %d stages, got %d", tt.wantStages, got)
			}

			found := false
			for _, w := range result.Warnings {
				if errors.Is(w, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected warning %v, got %v", tt.wantErr, result.Warnings)
			}
		})
	}
}

func TestCompile_EmptyCategoryDoesNotBreakChain(t *testing.T) {
	graph := Parse("A{s1}B{ -> }C{s2}", nil)

	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(graph.Edges))
	}
	if graph.Edges[0].Source != "stage-A-s1" || graph.Edges[0].Target != "stage-C-s2" {
		t.Errorf("unexpected edge: %+v", graph.Edges[0])
	}
}

func TestCompile_DuplicateSubStage(t *testing.T) {
	result := Compile("A{s1}", map[string]map[string]string{
		"A": {"s1": "x->y->x"},
	})

	subs := result.Graph.Node("stage-A-s1").Data.SubStages
	if len(subs) != 2 {
		t.Fatalf("expected 2 sub-stages, got %d", len(subs))
	}
	if subs[1].Next != "" {
		t.Errorf("last kept sub-stage should have no next, got %s", subs[1].Next)
	}
	if len(result.Warnings) != 1 || !errors.Is(result.Warnings[0], ErrDuplicateSubStage) {
		t.Errorf("expected ErrDuplicateSubStage warning, got %v", result.Warnings)
	}
}

func TestParseAnomaly_Error(t *testing.T) {
	a := newAnomaly("A", "s1", "boom", ErrUnknownStage)
	if a.Error() != "A/s1: boom" {
		t.Errorf("unexpected message: %s", a.Error())
	}
	if !errors.Is(a, ErrUnknownStage) {
		t.Error("anomaly should unwrap to its sentinel")
	}
}
