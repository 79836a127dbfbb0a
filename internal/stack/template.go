package stack

import (
	"fmt"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/template"
	"github.com/lex00/tastack-go/intrinsics"
	"github.com/lex00/tastack-go/resources/iam"
)

// Description is the template description.
const Description = "Teaching assistant API: container function, query and processed-file tables, public function URL"

// Template synthesizes the CloudFormation template.
func (s *Stack) Template() (*tastack.Template, error) {
	b, err := s.builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func (s *Stack) builder() (*template.Builder, error) {
	b := template.NewBuilder()
	b.SetDescription(Description)

	for _, t := range s.tables {
		if err := b.Add(t.LogicalID, t.Resource(), template.Retain()); err != nil {
			return nil, err
		}
	}

	if err := b.Add(s.function.RoleID, s.role()); err != nil {
		return nil, err
	}

	dependsOn := []string{s.function.RoleID}
	if policy, ok := s.defaultPolicy(); ok {
		if err := b.Add(DefaultPolicyID, policy); err != nil {
			return nil, err
		}
		dependsOn = append(dependsOn, DefaultPolicyID)
	}

	if err := b.Add(s.function.LogicalID, s.function.Resource(), template.DependsOn(dependsOn...)); err != nil {
		return nil, err
	}
	if err := b.Add(s.endpoint.LogicalID, s.endpoint.Resource()); err != nil {
		return nil, err
	}
	if err := b.Add(InvokePermissionID, s.endpoint.Permission()); err != nil {
		return nil, err
	}
	if err := b.AddOutput(FunctionURLOutput, tastack.Output{
		Description: "Public URL of the teaching assistant API",
		Value:       s.endpoint.URL(),
	}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Stack) role() iam.Role {
	arns := []any{intrinsics.ManagedPolicyArn(BasicExecutionPolicy)}
	for _, g := range s.grants.Filter(GrantManaged) {
		if g.Subject != s.function.RoleID {
			continue
		}
		arns = append(arns, intrinsics.ManagedPolicyArn(g.Target))
	}
	return iam.Role{
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.PolicyStatement{
			Effect:    "Allow",
			Principal: intrinsics.ServicePrincipal{"lambda.amazonaws.com"},
			Action:    "sts:AssumeRole",
		}),
		ManagedPolicyArns: arns,
	}
}

// defaultPolicy renders the scoped grants as one inline policy on the role.
func (s *Stack) defaultPolicy() (iam.Policy, bool) {
	var statements []any
	for _, g := range s.grants.List() {
		if g.Subject != s.function.RoleID {
			continue
		}
		switch g.Kind {
		case GrantTable:
			table, ok := s.Table(g.Target)
			if !ok {
				continue
			}
			statements = append(statements, intrinsics.PolicyStatement{
				Effect:   "Allow",
				Action:   TableActions(g.Capability),
				Resource: []any{table.ArnRef()},
			})
		case GrantBucket:
			bucket := ExternalBucket(g.Target)
			statements = append(statements, intrinsics.PolicyStatement{
				Effect:   "Allow",
				Action:   BucketActions(g.Capability),
				Resource: []any{bucket.Arn(), bucket.ObjectsArn()},
			})
		}
	}
	if len(statements) == 0 {
		return iam.Policy{}, false
	}
	return iam.Policy{
		PolicyName:     DefaultPolicyID,
		PolicyDocument: intrinsics.NewPolicyDocument(statements...),
		Roles:          []any{intrinsics.RefTo(s.function.RoleID)},
	}, true
}

// Summary describes the assembled graph in one line.
func (s *Stack) Summary() string {
	return fmt.Sprintf("%s: %d tables, 1 function, %d grants, endpoint auth %s",
		s.name, len(s.tables), s.grants.Len(), s.endpoint.AuthType)
}
