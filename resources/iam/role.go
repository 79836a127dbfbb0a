// Package iam provides the AWS::IAM resource types used by the stack.
package iam

// Role represents AWS::IAM::Role.
type Role struct {
	RoleName                 any   `json:"RoleName,omitempty"`
	AssumeRolePolicyDocument any   `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any `json:"ManagedPolicyArns,omitempty"`
}

// ResourceType returns "AWS::IAM::Role".
func (Role) ResourceType() string {
	return "AWS::IAM::Role"
}

// Policy represents AWS::IAM::Policy, an inline policy attached to roles.
type Policy struct {
	PolicyName     any   `json:"PolicyName"`
	PolicyDocument any   `json:"PolicyDocument"`
	Roles          []any `json:"Roles,omitempty"`
}

// ResourceType returns "AWS::IAM::Policy".
func (Policy) ResourceType() string {
	return "AWS::IAM::Policy"
}
