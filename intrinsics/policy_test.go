package intrinsics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServicePrincipal_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ServicePrincipal{"lambda.amazonaws.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Service": "lambda.amazonaws.com"}`, string(data))

	data, err = json.Marshal(ServicePrincipal{"lambda.amazonaws.com", "edgelambda.amazonaws.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Service": ["lambda.amazonaws.com", "edgelambda.amazonaws.com"]}`, string(data))
}

func TestNewPolicyDocument(t *testing.T) {
	doc := NewPolicyDocument(PolicyStatement{
		Effect:    "Allow",
		Principal: ServicePrincipal{"lambda.amazonaws.com"},
		Action:    "sts:AssumeRole",
	})

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"Service": "lambda.amazonaws.com"},
			"Action": "sts:AssumeRole"
		}]
	}`, string(data))
}

func TestManagedPolicyArn(t *testing.T) {
	data, err := json.Marshal(ManagedPolicyArn("AmazonBedrockFullAccess"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::Join": ["", ["arn:", {"Ref": "AWS::Partition"}, ":iam::aws:policy/AmazonBedrockFullAccess"]]}`, string(data))
}

func TestBucketArns(t *testing.T) {
	data, err := json.Marshal(BucketArn("teaching-assistant-tavily"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::Join": ["", ["arn:", {"Ref": "AWS::Partition"}, ":s3:::teaching-assistant-tavily"]]}`, string(data))

	data, err = json.Marshal(BucketObjectsArn("teaching-assistant-tavily"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `:s3:::teaching-assistant-tavily/*`)
}
