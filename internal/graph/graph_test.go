package graph

import (
	"regexp"
	"strings"
	"testing"

	tastack "github.com/lex00/tastack-go"
)

func testTemplate() *tastack.Template {
	return &tastack.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]tastack.ResourceDef{
			"QueriesTable":        {Type: "AWS::DynamoDB::Table"},
			"ProcessedFilesTable": {Type: "AWS::DynamoDB::Table"},
			"ApiFuncServiceRole":  {Type: "AWS::IAM::Role"},
			"ApiFunc": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"Role": map[string]any{"Fn::GetAtt": []any{"ApiFuncServiceRole", "Arn"}},
					"Environment": map[string]any{"Variables": map[string]any{
						"TABLE_NAME": map[string]any{"Ref": "QueriesTable"},
						"REGION":     map[string]any{"Ref": "AWS::Region"},
					}},
				},
				DependsOn: []string{"ApiFuncServiceRole", "ProcessedFilesTable"},
			},
			"ApiFuncFunctionUrl": {
				Type: "AWS::Lambda::Url",
				Properties: map[string]any{
					"TargetFunctionArn": map[string]any{"Fn::GetAtt": []any{"ApiFunc", "Arn"}},
				},
			},
		},
		Outputs: map[string]tastack.Output{
			"FunctionUrl": {Value: map[string]any{"Fn::GetAtt": []any{"ApiFuncFunctionUrl", "FunctionUrl"}}},
		},
	}
}

func TestGenerator_Generate_SimpleGraph(t *testing.T) {
	gen := &Generator{}
	var sb strings.Builder
	err := gen.Generate(testTemplate(), &sb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := sb.String()

	if !strings.Contains(output, "digraph") {
		t.Error("expected digraph declaration")
	}
	for _, name := range []string{"QueriesTable", "ProcessedFilesTable", "ApiFunc", "ApiFuncFunctionUrl"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected %s node", name)
		}
	}
	if !strings.Contains(output, "AWS::Lambda::Function") {
		t.Error("expected CloudFormation type in label")
	}
	if strings.Contains(output, "AWS::Region") {
		t.Error("pseudo parameters should not become nodes")
	}
	if strings.Contains(output, "ellipse") {
		t.Error("outputs should be excluded by default")
	}
}

func TestGenerator_Generate_EdgeStyles(t *testing.T) {
	gen := &Generator{}
	output, err := gen.GenerateString(testTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "blue") {
		t.Error("expected GetAtt edges to be blue")
	}
	if !strings.Contains(output, "dashed") {
		t.Error("expected explicit DependsOn-only edge to be dashed")
	}
	if strings.Count(output, "->") != 4 {
		t.Errorf("expected 4 edges, got %d:\n%s", strings.Count(output, "->"), output)
	}
}

func TestGenerator_Generate_Mermaid(t *testing.T) {
	gen := &Generator{Format: FormatMermaid}
	output, err := gen.GenerateString(testTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "flowchart") && !strings.Contains(output, "graph") {
		t.Errorf("expected mermaid header, got:\n%s", output)
	}
	if strings.Contains(output, "digraph") {
		t.Error("mermaid output should not contain DOT syntax")
	}
}

func TestGenerator_Generate_ClusterByType(t *testing.T) {
	gen := &Generator{ClusterByType: true}
	output, err := gen.GenerateString(testTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, `label="DynamoDB"`) {
		t.Error("expected DynamoDB cluster")
	}
	if !strings.Contains(output, `label="Lambda"`) {
		t.Error("expected Lambda cluster")
	}
	if strings.Contains(output, `label="IAM"`) {
		t.Error("single-resource services should not be clustered")
	}
	if got := strings.Count(output, "subgraph"); got != 2 {
		t.Errorf("expected 2 clusters, got %d", got)
	}
}

var (
	nodeDecl = regexp.MustCompile(`(?m)^\s*(n\d+)\[[^\]]*label=`)
	edgeDecl = regexp.MustCompile(`(n\d+)->(n\d+)`)
)

// checkEdgesEndAtNodes asserts the graph declares want labelled nodes and
// that no edge points at an undeclared one.
func checkEdgesEndAtNodes(t *testing.T, output string, want int) {
	t.Helper()

	declared := make(map[string]bool)
	for _, m := range nodeDecl.FindAllStringSubmatch(output, -1) {
		declared[m[1]] = true
	}
	if len(declared) != want {
		t.Errorf("declared %d nodes, want %d:\n%s", len(declared), want, output)
	}

	for _, m := range edgeDecl.FindAllStringSubmatch(output, -1) {
		for _, id := range m[1:] {
			if !declared[id] {
				t.Errorf("edge %s->%s ends at undeclared node %s", m[1], m[2], id)
			}
		}
	}
}

func TestGenerator_Generate_EdgesEndAtLabelledNodes(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
		want int
	}{
		{"flat", Generator{}, 5},
		{"clustered", Generator{ClusterByType: true}, 5},
		{"outputs", Generator{IncludeOutputs: true}, 6},
		{"clustered with outputs", Generator{ClusterByType: true, IncludeOutputs: true}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := tt.gen.GenerateString(testTemplate())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkEdgesEndAtNodes(t, output, tt.want)

			if got := strings.Count(output, "->"); got != 4+tt.want-5 {
				t.Errorf("expected %d edges, got %d", 4+tt.want-5, got)
			}
			for _, name := range []string{"QueriesTable", "ApiFuncServiceRole", "ApiFuncFunctionUrl"} {
				if strings.Contains(output, `label="`+name+`"`) {
					t.Errorf("%s was redeclared without its type label", name)
				}
			}
		})
	}
}

func TestGenerator_Generate_IncludeOutputs(t *testing.T) {
	gen := &Generator{IncludeOutputs: true}
	output, err := gen.GenerateString(testTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, `label="FunctionUrl"`) {
		t.Error("expected output node")
	}
	if !strings.Contains(output, "ellipse") {
		t.Error("expected output node to be an ellipse")
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	gen := &Generator{ClusterByType: true}
	first, err := gen.GenerateString(testTemplate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := gen.GenerateString(testTemplate())
		if again != first {
			t.Fatal("graph output is not deterministic")
		}
	}
}

func TestExtractService(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AWS::Lambda::Function", "Lambda"},
		{"AWS::DynamoDB::Table", "DynamoDB"},
		{"Custom::Thing", "Other"},
	}

	for _, tt := range tests {
		if got := extractService(tt.input); got != tt.expected {
			t.Errorf("extractService(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
