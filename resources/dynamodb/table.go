// Package dynamodb provides the AWS::DynamoDB resource types used by the stack.
package dynamodb

// Billing modes.
const (
	BillingModePayPerRequest = "PAY_PER_REQUEST"
	BillingModeProvisioned   = "PROVISIONED"
)

// Key types.
const (
	KeyTypeHash  = "HASH"
	KeyTypeRange = "RANGE"
)

// Scalar attribute types.
const (
	AttributeTypeString = "S"
	AttributeTypeNumber = "N"
	AttributeTypeBinary = "B"
)

// Table represents AWS::DynamoDB::Table.
type Table struct {
	TableName            any                         `json:"TableName,omitempty"`
	KeySchema            []Table_KeySchema           `json:"KeySchema"`
	AttributeDefinitions []Table_AttributeDefinition `json:"AttributeDefinitions,omitempty"`
	BillingMode          string                      `json:"BillingMode,omitempty"`
}

// ResourceType returns "AWS::DynamoDB::Table".
func (Table) ResourceType() string {
	return "AWS::DynamoDB::Table"
}

// Table_KeySchema is one element of a table's key schema.
type Table_KeySchema struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

// Table_AttributeDefinition declares the scalar type of a key attribute.
type Table_AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}
