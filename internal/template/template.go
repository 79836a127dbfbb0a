// Package template builds CloudFormation templates from typed resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/serialize"
)

// FormatVersion is the only template format version CloudFormation accepts.
const FormatVersion = "2010-09-09"

// PolicyRetain is the DeletionPolicy and UpdateReplacePolicy set by Retain.
const PolicyRetain = "Retain"

type entry struct {
	name                string
	resource            tastack.Resource
	dependsOn           []string
	deletionPolicy      string
	updateReplacePolicy string
}

// Option configures a resource added to a Builder.
type Option func(*entry)

// DependsOn adds explicit DependsOn entries.
func DependsOn(names ...string) Option {
	return func(e *entry) {
		e.dependsOn = append(e.dependsOn, names...)
	}
}

// Retain keeps the resource when it is removed from the stack or replaced.
func Retain() Option {
	return func(e *entry) {
		e.deletionPolicy = PolicyRetain
		e.updateReplacePolicy = PolicyRetain
	}
}

// Builder constructs a CloudFormation template.
type Builder struct {
	description string
	entries     map[string]*entry
	outputs     map[string]tastack.Output

	// deps holds every dependency of a resource, explicit and implied by
	// Ref, Fn::GetAtt and Fn::Sub. Filled by Build.
	deps  map[string][]string
	props map[string]map[string]any
}

// NewBuilder creates an empty template builder.
func NewBuilder() *Builder {
	return &Builder{
		entries: make(map[string]*entry),
		outputs: make(map[string]tastack.Output),
	}
}

// SetDescription sets the template description.
func (b *Builder) SetDescription(description string) {
	b.description = description
}

// Add declares a resource under a logical name.
func (b *Builder) Add(name string, resource tastack.Resource, opts ...Option) error {
	if name == "" {
		return errors.New("resource name is empty")
	}
	if resource == nil {
		return fmt.Errorf("resource %s is nil", name)
	}
	if _, exists := b.entries[name]; exists {
		return fmt.Errorf("duplicate resource name: %s", name)
	}
	e := &entry{name: name, resource: resource}
	for _, opt := range opts {
		opt(e)
	}
	b.entries[name] = e
	return nil
}

// AddOutput declares a template output.
func (b *Builder) AddOutput(name string, output tastack.Output) error {
	if name == "" {
		return errors.New("output name is empty")
	}
	if _, exists := b.outputs[name]; exists {
		return fmt.Errorf("duplicate output name: %s", name)
	}
	b.outputs[name] = output
	return nil
}

// Names returns the declared resource names, sorted.
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*tastack.Template, error) {
	if err := b.resolve(); err != nil {
		return nil, err
	}

	order, err := b.topologicalSort()
	if err != nil {
		return nil, err
	}

	template := &tastack.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]tastack.ResourceDef, len(order)),
	}

	for _, name := range order {
		e := b.entries[name]
		var dependsOn []string
		if len(e.dependsOn) > 0 {
			dependsOn = uniqueSorted(e.dependsOn)
		}
		template.Resources[name] = tastack.ResourceDef{
			Type:                e.resource.ResourceType(),
			Properties:          b.props[name],
			DependsOn:           dependsOn,
			DeletionPolicy:      e.deletionPolicy,
			UpdateReplacePolicy: e.updateReplacePolicy,
		}
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]tastack.Output, len(b.outputs))
		for name, output := range b.outputs {
			value, err := serialize.Normalize(output.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			for _, ref := range References(value) {
				if _, ok := b.entries[ref]; !ok {
					return nil, fmt.Errorf("output %s references unknown resource %s", name, ref)
				}
			}
			output.Value = value
			template.Outputs[name] = output
		}
	}

	return template, nil
}

// Order returns resource names in dependency order: every resource comes
// after everything it references. Ties are broken alphabetically.
func (b *Builder) Order() ([]string, error) {
	if err := b.resolve(); err != nil {
		return nil, err
	}
	return b.topologicalSort()
}

// resolve serializes every resource and collects its dependencies.
func (b *Builder) resolve() error {
	b.deps = make(map[string][]string, len(b.entries))
	b.props = make(map[string]map[string]any, len(b.entries))

	for _, name := range b.Names() {
		e := b.entries[name]
		props, err := serialize.Properties(e.resource)
		if err != nil {
			return fmt.Errorf("serializing %s: %w", name, err)
		}
		b.props[name] = props

		deps := append([]string{}, e.dependsOn...)
		deps = append(deps, References(props)...)
		for _, dep := range deps {
			if dep == name {
				return fmt.Errorf("resource %s references itself", name)
			}
			if _, ok := b.entries[dep]; !ok {
				return fmt.Errorf("resource %s references unknown resource %s", name, dep)
			}
		}
		b.deps[name] = uniqueSorted(deps)
	}
	return nil
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	// Build adjacency list
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range b.entries {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name, deps := range b.deps {
		for _, dep := range deps {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue) // Deterministic order

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue) // Keep sorted for determinism
			}
		}
	}

	if len(result) != len(b.entries) {
		return nil, b.detectCycle()
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func (b *Builder) detectCycle() error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range b.deps[node] {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	for _, name := range b.Names() {
		if !visited[name] {
			if findCycle(name) {
				break
			}
		}
	}

	if len(cycle) > 0 {
		msg := "circular dependency detected:\n"
		for i, name := range cycle {
			msg += fmt.Sprintf("  %s (%s)", name, b.entries[name].resource.ResourceType())
			if i < len(cycle)-1 {
				msg += "\n    → "
			}
		}
		return errors.New(msg)
	}

	return errors.New("circular dependency detected")
}

// References returns the logical names a normalized value refers to through
// Ref, Fn::GetAtt or Fn::Sub. Pseudo parameters are skipped.
func References(value any) []string {
	seen := make(map[string]bool)
	collectRefs(value, seen)
	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func collectRefs(value any, seen map[string]bool) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v["Ref"].(string); ok && len(v) == 1 {
			if !strings.HasPrefix(ref, "AWS::") {
				seen[ref] = true
			}
			return
		}
		if getAtt, ok := v["Fn::GetAtt"]; ok && len(v) == 1 {
			if name := getAttTarget(getAtt); name != "" {
				seen[name] = true
			}
			return
		}
		if sub, ok := v["Fn::Sub"]; ok && len(v) == 1 {
			collectSubRefs(sub, seen)
			return
		}
		for _, val := range v {
			collectRefs(val, seen)
		}
	case []any:
		for _, elem := range v {
			collectRefs(elem, seen)
		}
	}
}

func getAttTarget(getAtt any) string {
	switch v := getAtt.(type) {
	case []any:
		if len(v) > 0 {
			name, _ := v[0].(string)
			return name
		}
	case string:
		name, _, _ := strings.Cut(v, ".")
		return name
	}
	return ""
}

func collectSubRefs(sub any, seen map[string]bool) {
	var text string
	switch v := sub.(type) {
	case string:
		text = v
	case []any:
		if len(v) == 0 {
			return
		}
		text, _ = v[0].(string)
		// Variables defined in the map are local to the Sub.
		local := map[string]bool{}
		if len(v) > 1 {
			if vars, ok := v[1].(map[string]any); ok {
				for k, val := range vars {
					local[k] = true
					collectRefs(val, seen)
				}
			}
		}
		for _, name := range subVariables(text) {
			if !local[name] {
				seen[name] = true
			}
		}
		return
	}
	for _, name := range subVariables(text) {
		seen[name] = true
	}
}

// subVariables returns the resource names used by ${...} placeholders.
func subVariables(text string) []string {
	var names []string
	for {
		start := strings.Index(text, "${")
		if start < 0 {
			return names
		}
		rest := text[start+2:]
		end := strings.Index(rest, "}")
		if end < 0 {
			return names
		}
		expr := rest[:end]
		text = rest[end+1:]
		if strings.HasPrefix(expr, "!") || strings.HasPrefix(expr, "AWS::") || expr == "" {
			continue
		}
		name, _, _ := strings.Cut(expr, ".")
		names = append(names, name)
	}
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

// ToJSON serializes the template to JSON.
func ToJSON(t *tastack.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *tastack.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
