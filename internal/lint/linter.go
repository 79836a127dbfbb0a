// Package lint audits synthesized templates for permissive security settings.
package lint

import (
	"sort"

	tastack "github.com/lex00/tastack-go"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single audit finding.
type Issue struct {
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	Resource   string   `json:"resource"`
	Path       string   `json:"path,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Rule checks a template.
type Rule interface {
	ID() string
	Description() string
	Check(t *tastack.Template) []Issue
}

// Result contains the outcome of an audit.
type Result struct {
	Success bool
	Issues  []Issue
}

// Errors returns the error-severity issues.
func (r Result) Errors() []Issue {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning-severity issues.
func (r Result) Warnings() []Issue {
	return r.bySeverity(SeverityWarning)
}

func (r Result) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// Options configures the audit.
type Options struct {
	// Rules to enable. If empty, all rules are enabled.
	EnabledRules []string
	// Rules to skip, applied after EnabledRules.
	DisabledRules []string
}

// AllRules returns every audit rule.
func AllRules() []Rule {
	return []Rule{
		BroadManagedPolicy{},
		UnauthenticatedFunctionURL{},
		PlaintextSecretEnvironment{},
		WildcardAction{},
	}
}

// Audit runs the enabled rules over a template.
func Audit(t *tastack.Template, opts Options) Result {
	if t == nil {
		return Result{Success: true}
	}

	var issues []Issue
	for _, rule := range getRules(opts) {
		issues = append(issues, rule.Check(t)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Rule != issues[j].Rule {
			return issues[i].Rule < issues[j].Rule
		}
		if issues[i].Resource != issues[j].Resource {
			return issues[i].Resource < issues[j].Resource
		}
		return issues[i].Path < issues[j].Path
	})

	return Result{
		Success: len(issues) == 0,
		Issues:  issues,
	}
}

// getRules returns the rules to use based on options.
func getRules(opts Options) []Rule {
	all := AllRules()

	enabled := make(map[string]bool)
	for _, id := range opts.EnabledRules {
		enabled[id] = true
	}
	disabled := make(map[string]bool)
	for _, id := range opts.DisabledRules {
		disabled[id] = true
	}

	var filtered []Rule
	for _, r := range all {
		if len(enabled) > 0 && !enabled[r.ID()] {
			continue
		}
		if disabled[r.ID()] {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// sortedNames returns template resource names in a stable order.
func sortedNames(t *tastack.Template) []string {
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
