// Package intrinsics provides the CloudFormation intrinsic functions used by the stack.
//
// This package re-exports the core intrinsic types from cloudformation-schema-go
// and adds IAM policy-specific types.
//
//	Ref{LogicalName: "ApiFuncServiceRole"} → {"Ref": "ApiFuncServiceRole"}
//	Sub{String: "${AWS::AccountId}.dkr.ecr"} → {"Fn::Sub": "${AWS::AccountId}.dkr.ecr"}
//	Join{Delimiter: "", Values: []any{"arn:", AWS_PARTITION}} → {"Fn::Join": ["", ["arn:", {"Ref": "AWS::Partition"}]]}
package intrinsics

import (
	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join
)

// RefTo returns a Ref to the resource with the given logical name.
func RefTo(logicalName string) Ref {
	return Ref{LogicalName: logicalName}
}

// Concat joins values with an empty delimiter.
func Concat(values ...any) Join {
	return Join{Delimiter: "", Values: values}
}
