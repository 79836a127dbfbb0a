package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/intrinsics"
	"github.com/lex00/tastack-go/resources/dynamodb"
	"github.com/lex00/tastack-go/resources/iam"
	"github.com/lex00/tastack-go/resources/lambda"
)

func queriesTable() dynamodb.Table {
	return dynamodb.Table{
		TableName:            "queries",
		KeySchema:            []dynamodb.Table_KeySchema{{AttributeName: "query_id", KeyType: dynamodb.KeyTypeHash}},
		AttributeDefinitions: []dynamodb.Table_AttributeDefinition{{AttributeName: "query_id", AttributeType: dynamodb.AttributeTypeString}},
		BillingMode:          dynamodb.BillingModePayPerRequest,
	}
}

func TestBuilder_Build_SimpleResource(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("QueriesTable", queriesTable(), Retain()))

	template, err := builder.Build()
	require.NoError(t, err)

	assert.Equal(t, "2010-09-09", template.AWSTemplateFormatVersion)
	assert.Len(t, template.Resources, 1)

	table := template.Resources["QueriesTable"]
	assert.Equal(t, "AWS::DynamoDB::Table", table.Type)
	assert.Equal(t, "queries", table.Properties["TableName"])
	assert.Equal(t, "PAY_PER_REQUEST", table.Properties["BillingMode"])
	assert.Equal(t, PolicyRetain, table.DeletionPolicy)
	assert.Equal(t, PolicyRetain, table.UpdateReplacePolicy)
	assert.Nil(t, table.DependsOn)
}

func TestBuilder_Build_WithDependencies(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("Role", iam.Role{AssumeRolePolicyDocument: intrinsics.NewPolicyDocument()}))
	require.NoError(t, builder.Add("Func", lambda.Function{
		Code: lambda.Function_Code{ImageUri: "repo:tag"},
		Role: tastack.AttrRef{Resource: "Role", Attribute: "Arn"},
		Environment: &lambda.Function_Environment{
			Variables: map[string]any{"TABLE_NAME": intrinsics.RefTo("Table")},
		},
	}, DependsOn("Role")))
	require.NoError(t, builder.Add("Table", queriesTable()))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Len(t, template.Resources, 3)

	fn := template.Resources["Func"]
	role := fn.Properties["Role"].(map[string]any)
	assert.Contains(t, role, "Fn::GetAtt")
	assert.Equal(t, []string{"Role"}, fn.DependsOn)

	order, err := builder.Order()
	require.NoError(t, err)
	assert.Less(t, indexOf(order, "Role"), indexOf(order, "Func"))
	assert.Less(t, indexOf(order, "Table"), indexOf(order, "Func"))
}

func TestBuilder_TopologicalSort(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("C", queriesTable(), DependsOn("B")))
	require.NoError(t, builder.Add("B", queriesTable(), DependsOn("A")))
	require.NoError(t, builder.Add("A", queriesTable()))

	order, err := builder.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestBuilder_OrderIsDeterministic(t *testing.T) {
	build := func() []string {
		builder := NewBuilder()
		for _, name := range []string{"Zeta", "Alpha", "Mid", "Beta"} {
			require.NoError(t, builder.Add(name, queriesTable()))
		}
		order, err := builder.Order()
		require.NoError(t, err)
		return order
	}

	first := build()
	assert.Equal(t, []string{"Alpha", "Beta", "Mid", "Zeta"}, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
}

func TestBuilder_DetectCycle(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("A", queriesTable(), DependsOn("B")))
	require.NoError(t, builder.Add("B", queriesTable(), DependsOn("C")))
	require.NoError(t, builder.Add("C", queriesTable(), DependsOn("A")))

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
	assert.Contains(t, err.Error(), "AWS::DynamoDB::Table")
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		builder := NewBuilder()
		require.NoError(t, builder.Add("A", queriesTable()))
		err := builder.Add("A", queriesTable())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate resource name")
	})

	t.Run("empty name", func(t *testing.T) {
		assert.Error(t, NewBuilder().Add("", queriesTable()))
	})

	t.Run("nil resource", func(t *testing.T) {
		assert.Error(t, NewBuilder().Add("A", nil))
	})

	t.Run("unknown reference", func(t *testing.T) {
		builder := NewBuilder()
		require.NoError(t, builder.Add("Url", lambda.Url{
			AuthType:          lambda.AuthTypeNone,
			TargetFunctionArn: tastack.AttrRef{Resource: "Missing", Attribute: "Arn"},
		}))
		_, err := builder.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown resource Missing")
	})

	t.Run("self reference", func(t *testing.T) {
		builder := NewBuilder()
		require.NoError(t, builder.Add("A", queriesTable(), DependsOn("A")))
		_, err := builder.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "references itself")
	})

	t.Run("output references unknown resource", func(t *testing.T) {
		builder := NewBuilder()
		require.NoError(t, builder.AddOutput("FunctionUrl", tastack.Output{
			Value: tastack.AttrRef{Resource: "ApiFuncFunctionUrl", Attribute: "FunctionUrl"},
		}))
		_, err := builder.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "output FunctionUrl")
	})

	t.Run("duplicate output", func(t *testing.T) {
		builder := NewBuilder()
		require.NoError(t, builder.AddOutput("X", tastack.Output{Value: "a"}))
		assert.Error(t, builder.AddOutput("X", tastack.Output{Value: "b"}))
	})
}

func TestBuilder_Outputs(t *testing.T) {
	builder := NewBuilder()
	builder.SetDescription("teaching assistant")
	require.NoError(t, builder.Add("ApiFuncFunctionUrl", lambda.Url{AuthType: lambda.AuthTypeNone, TargetFunctionArn: "arn"}))
	require.NoError(t, builder.AddOutput("FunctionUrl", tastack.Output{
		Value: tastack.AttrRef{Resource: "ApiFuncFunctionUrl", Attribute: "FunctionUrl"},
	}))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, "teaching assistant", template.Description)
	assert.Equal(t,
		map[string]any{"Fn::GetAtt": []any{"ApiFuncFunctionUrl", "FunctionUrl"}},
		template.Outputs["FunctionUrl"].Value)
}

func TestBuilder_Names(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("B", queriesTable()))
	require.NoError(t, builder.Add("A", queriesTable()))

	assert.Equal(t, []string{"A", "B"}, builder.Names())
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected []string
	}{
		{"ref", map[string]any{"Ref": "QueriesTable"}, []string{"QueriesTable"}},
		{"pseudo ref", map[string]any{"Ref": "AWS::Region"}, []string{}},
		{"getatt list", map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}}, []string{"Role"}},
		{"getatt string", map[string]any{"Fn::GetAtt": "Role.Arn"}, []string{"Role"}},
		{
			"sub",
			map[string]any{"Fn::Sub": "${QueriesTable.Arn}/index/*:${AWS::Region}:${!Literal}"},
			[]string{"QueriesTable"},
		},
		{
			"sub with variables",
			map[string]any{"Fn::Sub": []any{"${Bucket}/${Local}", map[string]any{"Local": map[string]any{"Ref": "Other"}}}},
			[]string{"Bucket", "Other"},
		},
		{
			"nested",
			map[string]any{
				"Statement": []any{
					map[string]any{"Resource": []any{
						map[string]any{"Fn::GetAtt": []any{"QueriesTable", "Arn"}},
						map[string]any{"Fn::GetAtt": []any{"ProcessedFilesTable", "Arn"}},
						map[string]any{"Ref": "AWS::NoValue"},
					}},
				},
			},
			[]string{"ProcessedFilesTable", "QueriesTable"},
		},
		{"plain", "text", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, References(tt.value))
		})
	}
}

func TestToJSON(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("QueriesTable", queriesTable(), Retain()))
	template, err := builder.Build()
	require.NoError(t, err)

	data, err := ToJSON(template)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "2010-09-09", parsed["AWSTemplateFormatVersion"])
	resources := parsed["Resources"].(map[string]any)
	table := resources["QueriesTable"].(map[string]any)
	assert.Equal(t, "AWS::DynamoDB::Table", table["Type"])
	assert.Equal(t, "Retain", table["DeletionPolicy"])
}

func TestToYAML(t *testing.T) {
	builder := NewBuilder()
	require.NoError(t, builder.Add("QueriesTable", queriesTable()))
	template, err := builder.Build()
	require.NoError(t, err)

	data, err := ToYAML(template)
	require.NoError(t, err)

	assert.Contains(t, string(data), "AWSTemplateFormatVersion")
	assert.Contains(t, string(data), "AWS::DynamoDB::Table")
	assert.Contains(t, string(data), "query_id")
}

func indexOf(slice []string, item string) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}
