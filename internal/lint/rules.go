package lint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	tastack "github.com/lex00/tastack-go"
)

// BroadManagedPolicy flags AWS managed policies that grant full access to a
// service or account.
//
// Example:
//
//	// Flagged - every Bedrock action on every resource
//	ManagedPolicyArns: []any{ManagedPolicyArn("AmazonBedrockFullAccess")}
//
//	// Good - scoped statements in an inline policy
//	Statement: []any{PolicyStatement{Action: TableActions(CapabilityReadWrite), Resource: ...}}
type BroadManagedPolicy struct{}

func (r BroadManagedPolicy) ID() string { return "TAS001" }
func (r BroadManagedPolicy) Description() string {
	return "Managed policy grants full access; prefer scoped grants"
}

var broadPolicyName = regexp.MustCompile(`(FullAccess|AdministratorAccess|PowerUserAccess)$`)

func (r BroadManagedPolicy) Check(t *tastack.Template) []Issue {
	var issues []Issue
	for _, name := range sortedNames(t) {
		def := t.Resources[name]
		if def.Type != "AWS::IAM::Role" {
			continue
		}
		arns, _ := def.Properties["ManagedPolicyArns"].([]any)
		for i, arn := range arns {
			policy := managedPolicyName(arn)
			if policy == "" || !broadPolicyName.MatchString(policy) {
				continue
			}
			issues = append(issues, Issue{
				Rule:       r.ID(),
				Severity:   SeverityWarning,
				Resource:   name,
				Path:       fmt.Sprintf("Properties.ManagedPolicyArns[%d]", i),
				Message:    fmt.Sprintf("%s attaches %s, which is wider than least privilege", name, policy),
				Suggestion: "Confirm the workload needs it; scoped grants already cover table and bucket access",
			})
		}
	}
	return issues
}

// managedPolicyName extracts the policy name from a literal ARN or from the
// Fn::Join form produced by ManagedPolicyArn.
func managedPolicyName(arn any) string {
	var text string
	switch v := arn.(type) {
	case string:
		text = v
	case map[string]any:
		join, ok := v["Fn::Join"].([]any)
		if !ok || len(join) != 2 {
			return ""
		}
		parts, _ := join[1].([]any)
		for _, p := range parts {
			if s, ok := p.(string); ok {
				text += s
			}
		}
	default:
		return ""
	}
	_, name, found := strings.Cut(text, ":policy/")
	if !found {
		return ""
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// UnauthenticatedFunctionURL flags function URLs anyone can invoke.
type UnauthenticatedFunctionURL struct{}

func (r UnauthenticatedFunctionURL) ID() string { return "TAS002" }
func (r UnauthenticatedFunctionURL) Description() string {
	return "Function URL is publicly invocable without authentication"
}

func (r UnauthenticatedFunctionURL) Check(t *tastack.Template) []Issue {
	var issues []Issue
	for _, name := range sortedNames(t) {
		def := t.Resources[name]
		if def.Type != "AWS::Lambda::Url" {
			continue
		}
		if auth, _ := def.Properties["AuthType"].(string); auth != "NONE" {
			continue
		}
		issues = append(issues, Issue{
			Rule:       r.ID(),
			Severity:   SeverityWarning,
			Resource:   name,
			Path:       "Properties.AuthType",
			Message:    fmt.Sprintf("%s has AuthType NONE; the function must authenticate callers itself", name),
			Suggestion: "Check the API_KEY handling in the function or switch to AWS_IAM",
		})
	}
	return issues
}

// PlaintextSecretEnvironment flags function environment variables that carry
// a literal secret. The value itself never appears in the issue.
type PlaintextSecretEnvironment struct{}

func (r PlaintextSecretEnvironment) ID() string { return "TAS003" }
func (r PlaintextSecretEnvironment) Description() string {
	return "Secret stored as a plaintext environment variable"
}

// sensitiveNames are substrings of variable names that usually hold secrets.
var sensitiveNames = []string{"API_KEY", "APIKEY", "SECRET", "TOKEN", "PASSWORD", "PRIVATE_KEY"}

type secretPatternDef struct {
	name    string
	pattern *regexp.Regexp
}

var secretPatterns = []secretPatternDef{
	{"AWS access key", regexp.MustCompile(`^(A3T[A-Z0-9]|AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}$`)},
	{"private key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`)},
	{"Stripe API key", regexp.MustCompile(`^[sp]k_(live|test)_[a-zA-Z0-9]{24,}$`)},
	{"GitHub token", regexp.MustCompile(`^(gh[pousr]_[A-Za-z0-9_]{36,}|github_pat_[A-Za-z0-9_]{22,})$`)},
	{"Slack token", regexp.MustCompile(`^xox[baprs]-[0-9]{10,}-[0-9]{10,}-[a-zA-Z0-9]{24,}$`)},
	{"Pinecone API key", regexp.MustCompile(`^pcsk_[A-Za-z0-9_]{20,}$`)},
}

func (r PlaintextSecretEnvironment) Check(t *tastack.Template) []Issue {
	var issues []Issue
	for _, name := range sortedNames(t) {
		def := t.Resources[name]
		if def.Type != "AWS::Lambda::Function" {
			continue
		}
		env, _ := def.Properties["Environment"].(map[string]any)
		vars, _ := env["Variables"].(map[string]any)
		for _, key := range sortedKeys(vars) {
			value, ok := vars[key].(string)
			if !ok || value == "" {
				continue
			}
			kind := secretKind(key, value)
			if kind == "" {
				continue
			}
			issues = append(issues, Issue{
				Rule:       r.ID(),
				Severity:   SeverityWarning,
				Resource:   name,
				Path:       "Properties.Environment.Variables." + key,
				Message:    fmt.Sprintf("%s looks like a %s stored in plaintext (%d chars)", key, kind, len(value)),
				Suggestion: "Anyone with lambda:GetFunctionConfiguration can read it; consider Secrets Manager",
			})
		}
	}
	return issues
}

func secretKind(key, value string) string {
	for _, sp := range secretPatterns {
		if sp.pattern.MatchString(value) {
			return sp.name
		}
	}
	upper := strings.ToUpper(key)
	for _, s := range sensitiveNames {
		if strings.Contains(upper, s) {
			return "secret"
		}
	}
	return ""
}

// WildcardAction flags IAM statements that allow "*" or "service:*".
type WildcardAction struct{}

func (r WildcardAction) ID() string { return "TAS004" }
func (r WildcardAction) Description() string {
	return "IAM statement allows every action of a service"
}

func (r WildcardAction) Check(t *tastack.Template) []Issue {
	var issues []Issue
	for _, name := range sortedNames(t) {
		def := t.Resources[name]
		var docs map[string]any
		switch def.Type {
		case "AWS::IAM::Policy", "AWS::IAM::ManagedPolicy":
			docs = map[string]any{"Properties.PolicyDocument": def.Properties["PolicyDocument"]}
		case "AWS::IAM::Role":
			docs = map[string]any{}
			policies, _ := def.Properties["Policies"].([]any)
			for i, p := range policies {
				if pm, ok := p.(map[string]any); ok {
					docs[fmt.Sprintf("Properties.Policies[%d].PolicyDocument", i)] = pm["PolicyDocument"]
				}
			}
		default:
			continue
		}
		for _, path := range sortedKeys(docs) {
			doc, _ := docs[path].(map[string]any)
			statements, _ := doc["Statement"].([]any)
			for i, s := range statements {
				stmt, _ := s.(map[string]any)
				if effect, _ := stmt["Effect"].(string); effect != "Allow" {
					continue
				}
				for _, action := range actions(stmt["Action"]) {
					if action != "*" && !strings.HasSuffix(action, ":*") {
						continue
					}
					issues = append(issues, Issue{
						Rule:       r.ID(),
						Severity:   SeverityError,
						Resource:   name,
						Path:       fmt.Sprintf("%s.Statement[%d].Action", path, i),
						Message:    fmt.Sprintf("%s allows %q", name, action),
						Suggestion: "List the actions the function calls",
					})
				}
			}
		}
	}
	return issues
}

func actions(v any) []string {
	switch a := v.(type) {
	case string:
		return []string{a}
	case []any:
		var out []string
		for _, item := range a {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return a
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
