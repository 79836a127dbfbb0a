package stack

import (
	"github.com/lex00/tastack-go/intrinsics"
	"github.com/lex00/tastack-go/resources/dynamodb"
)

// Physical table names. Existing deployments depend on them.
const (
	QueriesTableName        = "teaching-assistant-tavily-queries-table"
	ProcessedFilesTableName = "teaching-assistant-tavily-processed-files"
)

// TableSpec declares a key-value table with a single partition key.
type TableSpec struct {
	LogicalID    string
	Name         string
	PartitionKey string
	KeyType      string
	BillingMode  string
}

// QueriesTable holds query records keyed by query_id.
func QueriesTable() TableSpec {
	return TableSpec{
		LogicalID:    QueriesTableID,
		Name:         QueriesTableName,
		PartitionKey: "query_id",
		KeyType:      dynamodb.AttributeTypeString,
		BillingMode:  dynamodb.BillingModePayPerRequest,
	}
}

// ProcessedFilesTable holds processed-file records keyed by filename.
func ProcessedFilesTable() TableSpec {
	return TableSpec{
		LogicalID:    ProcessedFilesTableID,
		Name:         ProcessedFilesTableName,
		PartitionKey: "filename",
		KeyType:      dynamodb.AttributeTypeString,
		BillingMode:  dynamodb.BillingModePayPerRequest,
	}
}

// Resource renders the table as AWS::DynamoDB::Table.
func (t TableSpec) Resource() dynamodb.Table {
	return dynamodb.Table{
		TableName: t.Name,
		KeySchema: []dynamodb.Table_KeySchema{
			{AttributeName: t.PartitionKey, KeyType: dynamodb.KeyTypeHash},
		},
		AttributeDefinitions: []dynamodb.Table_AttributeDefinition{
			{AttributeName: t.PartitionKey, AttributeType: t.KeyType},
		},
		BillingMode: t.BillingMode,
	}
}

// NameRef resolves to the deployed table name.
func (t TableSpec) NameRef() intrinsics.Ref {
	return intrinsics.RefTo(t.LogicalID)
}

// ArnRef resolves to the deployed table ARN.
func (t TableSpec) ArnRef() intrinsics.GetAtt {
	return intrinsics.GetAtt{LogicalName: t.LogicalID, Attribute: "Arn"}
}
