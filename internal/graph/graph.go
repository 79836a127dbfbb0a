// Package graph generates DOT and Mermaid format dependency graphs from synthesized templates.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from templates.
type Generator struct {
	// IncludeOutputs adds a node for each template output.
	IncludeOutputs bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool
}

// Generate creates a dependency graph and writes it to w.
func (g *Generator) Generate(t *tastack.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	format := g.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := w.Write([]byte(output))
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *tastack.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// buildGraph creates the dot.Graph structure from template resources.
func (g *Generator) buildGraph(t *tastack.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := sortedNames(t.Resources)

	var nodes map[string]dot.Node
	if g.ClusterByType {
		nodes = g.addClusteredNodes(graph, t, names)
	} else {
		nodes = make(map[string]dot.Node, len(names))
		for _, name := range names {
			nodes[name] = graph.Node(name).Label(nodeLabel(name, t.Resources[name].Type))
		}
	}

	for _, name := range names {
		def := t.Resources[name]
		getAtts := getAttTargets(def.Properties)
		explicit := make(map[string]bool, len(def.DependsOn))
		for _, dep := range def.DependsOn {
			explicit[dep] = true
		}

		targets := template.References(def.Properties)
		targets = append(targets, def.DependsOn...)
		drawn := make(map[string]bool)
		for _, dep := range targets {
			if drawn[dep] {
				continue
			}
			target, ok := nodes[dep]
			if !ok {
				continue
			}
			drawn[dep] = true

			e := graph.Edge(nodes[name], target)
			switch {
			case getAtts[dep]:
				e.Attr("color", "blue")
			case explicit[dep] && !referenced(def.Properties, dep):
				e.Attr("style", "dashed")
			}
		}
	}

	if g.IncludeOutputs {
		for _, name := range sortedNames(t.Outputs) {
			n := graph.Node("output_" + name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(name)
			for _, dep := range template.References(t.Outputs[name].Value) {
				if target, ok := nodes[dep]; ok {
					graph.Edge(n, target)
				}
			}
		}
	}

	return graph
}

// addClusteredNodes adds resource nodes grouped by AWS service and returns
// them by logical name. Edges must use these nodes: graph.Node on the root
// would create a second, unclustered node.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *tastack.Template, names []string) map[string]dot.Node {
	nodes := make(map[string]dot.Node, len(names))
	serviceResources := make(map[string][]string)
	for _, name := range names {
		service := extractService(t.Resources[name].Type)
		serviceResources[service] = append(serviceResources[service], name)
	}

	for _, service := range sortedNames(serviceResources) {
		resNames := serviceResources[service]
		if len(resNames) > 1 {
			cluster := graph.Subgraph("cluster_"+service, dot.ClusterOption{})
			cluster.Attr("label", service)
			cluster.Attr("style", "rounded")
			cluster.Attr("bgcolor", "lightyellow")

			for _, name := range resNames {
				nodes[name] = cluster.Node(name).Label(nodeLabel(name, t.Resources[name].Type))
			}
		} else {
			// Single resource, no cluster needed
			for _, name := range resNames {
				nodes[name] = graph.Node(name).Label(nodeLabel(name, t.Resources[name].Type))
			}
		}
	}
	return nodes
}

func nodeLabel(name, cfType string) string {
	return name + "\\n[" + cfType + "]"
}

// extractService extracts the AWS service name from a CloudFormation type.
// e.g., "AWS::Lambda::Function" -> "Lambda"
func extractService(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}

// getAttTargets returns the resources reached through Fn::GetAtt.
func getAttTargets(value any) map[string]bool {
	out := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			if ga, ok := x["Fn::GetAtt"]; ok && len(x) == 1 {
				for _, name := range template.References(map[string]any{"Fn::GetAtt": ga}) {
					out[name] = true
				}
				return
			}
			for _, val := range x {
				walk(val)
			}
		case []any:
			for _, elem := range x {
				walk(elem)
			}
		}
	}
	walk(value)
	return out
}

func referenced(props map[string]any, name string) bool {
	for _, ref := range template.References(props) {
		if ref == name {
			return true
		}
	}
	return false
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
