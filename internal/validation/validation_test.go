package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tastack "github.com/lex00/tastack-go"
	audit "github.com/lex00/tastack-go/internal/lint"
)

func TestCfnLintResult_TotalIssues(t *testing.T) {
	tests := []struct {
		name     string
		result   CfnLintResult
		expected int
	}{
		{
			name:     "empty result",
			result:   CfnLintResult{},
			expected: 0,
		},
		{
			name: "errors only",
			result: CfnLintResult{
				Errors: []string{"error1", "error2"},
			},
			expected: 2,
		},
		{
			name: "mixed issues",
			result: CfnLintResult{
				Errors:        []string{"error1"},
				Warnings:      []string{"warning1", "warning2"},
				Informational: []string{"info1"},
			},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.TotalIssues())
		})
	}
}

func TestFormatMatch(t *testing.T) {
	tests := []struct {
		name     string
		match    lint.Match
		expected string
	}{
		{
			name: "simple match",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "E3012"},
				Message: "Property is of the wrong type",
			},
			expected: "E3012: Property is of the wrong type",
		},
		{
			name: "match with path",
			match: lint.Match{
				Rule:    lint.MatchRule{ID: "W3005"},
				Message: "Obsolete DependsOn",
				Location: lint.MatchLocation{
					Path: []any{"Resources", "ApiFunc", "DependsOn", 0},
				},
			},
			expected: "W3005: Obsolete DependsOn (at Resources/ApiFunc/DependsOn/0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMatch(tt.match))
		})
	}
}

func TestRunCfnLint_FileNotFound(t *testing.T) {
	result, err := RunCfnLint("/nonexistent/template.yaml")
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Template file not found")
}

func TestRunCfnLint_ValidTemplate(t *testing.T) {
	templatePath := filepath.Join(t.TempDir(), "template.yaml")

	validTemplate := `AWSTemplateFormatVersion: '2010-09-09'
Resources:
  QueriesTable:
    Type: AWS::DynamoDB::Table
    DeletionPolicy: Retain
    UpdateReplacePolicy: Retain
    Properties:
      TableName: teaching-assistant-tavily-queries-table
      BillingMode: PAY_PER_REQUEST
      KeySchema:
        - AttributeName: query_id
          KeyType: HASH
      AttributeDefinitions:
        - AttributeName: query_id
          AttributeType: S
`
	require.NoError(t, os.WriteFile(templatePath, []byte(validTemplate), 0644))

	result, err := RunCfnLint(templatePath)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestLintTemplate(t *testing.T) {
	tmpl := &tastack.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]tastack.ResourceDef{
			"ApiFuncFunctionUrl": {
				Type:       "AWS::Lambda::Url",
				Properties: map[string]any{"AuthType": "NONE", "TargetFunctionArn": "arn:aws:lambda:us-east-1:123456789012:function:api"},
			},
		},
	}

	result, err := LintTemplate(tmpl)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, result.Errors)
}

func TestValidate(t *testing.T) {
	tmpl := &tastack.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]tastack.ResourceDef{
			"ApiFuncFunctionUrl": {
				Type:       "AWS::Lambda::Url",
				Properties: map[string]any{"AuthType": "NONE", "TargetFunctionArn": "arn:aws:lambda:us-east-1:123456789012:function:api"},
			},
		},
	}

	result, err := Validate(tmpl, audit.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.CfnLintResult)
	require.Len(t, result.AuditResult.Issues, 1)
	assert.Equal(t, "TAS002", result.AuditResult.Issues[0].Rule)
}

func TestValidationResult_Passed(t *testing.T) {
	tests := []struct {
		name     string
		result   ValidationResult
		expected bool
	}{
		{"clean", ValidationResult{CfnLintResult: &CfnLintResult{Passed: true}}, true},
		{"cfn-lint error", ValidationResult{CfnLintResult: &CfnLintResult{Passed: false}}, false},
		{
			"audit warning only",
			ValidationResult{
				CfnLintResult: &CfnLintResult{Passed: true},
				AuditResult:   audit.Result{Issues: []audit.Issue{{Rule: "TAS002", Severity: audit.SeverityWarning}}},
			},
			true,
		},
		{
			"audit error",
			ValidationResult{
				CfnLintResult: &CfnLintResult{Passed: true},
				AuditResult:   audit.Result{Issues: []audit.Issue{{Rule: "TAS004", Severity: audit.SeverityError}}},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.Passed())
		})
	}
}
