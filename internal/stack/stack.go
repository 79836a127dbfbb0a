// Package stack assembles the teaching assistant's resource graph.
//
// Assembly is a single pass over resolved inputs:
//
//	cfg, err := config.Load(config.Options{})
//	image, err := asset.Fingerprint(cfg.ImageDir)
//	s, err := stack.Assemble(cfg, image)
//	tmpl, err := s.Template()
//
// It reads no environment, touches no network and fails before declaring
// anything when a required secret is missing.
package stack

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/asset"
	"github.com/lex00/tastack-go/internal/config"
	"github.com/lex00/tastack-go/intrinsics"
)

// Logical IDs of the declared resources and the stack output.
const (
	QueriesTableID        = "QueriesTable"
	ProcessedFilesTableID = "ProcessedFilesTable"
	FunctionID            = "ApiFunc"
	RoleID                = "ApiFuncServiceRole"
	DefaultPolicyID       = "ApiFuncServiceRoleDefaultPolicy"
	FunctionURLID         = "ApiFuncFunctionUrl"
	InvokePermissionID    = "ApiFuncInvokeFunctionUrlPermission"
	FunctionURLOutput     = "FunctionUrl"
)

// Stack is an assembled resource graph. It is immutable once assembled.
type Stack struct {
	name     string
	tables   []TableSpec
	bucket   BucketRef
	function ComputeSpec
	grants   *Grants
	endpoint Endpoint
}

// Assemble declares the stack from resolved configuration and an image source.
func Assemble(cfg config.Config, image asset.ImageSource) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if image == nil {
		return nil, errors.New("image source is nil")
	}

	s := &Stack{
		name:   cfg.StackName,
		bucket: ExternalBucket(BucketName),
		grants: NewGrants(),
	}

	s.tables = []TableSpec{QueriesTable(), ProcessedFilesTable()}
	s.function = newCompute(cfg, image, s.tables)
	s.declareGrants()
	s.endpoint = newEndpoint(s.function.LogicalID)

	if _, err := s.Template(); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", s.name, err)
	}

	log.Debug().
		Str("stack", s.name).
		Int("tables", len(s.tables)).
		Int("grants", s.grants.Len()).
		Msg("stack assembled")
	return s, nil
}

// Name returns the stack name.
func (s *Stack) Name() string {
	return s.name
}

// Tables returns the declared tables.
func (s *Stack) Tables() []TableSpec {
	return append([]TableSpec(nil), s.tables...)
}

// Table returns a declared table by logical ID.
func (s *Stack) Table(logicalID string) (TableSpec, bool) {
	for _, t := range s.tables {
		if t.LogicalID == logicalID {
			return t, true
		}
	}
	return TableSpec{}, false
}

// Bucket returns the external bucket handle.
func (s *Stack) Bucket() BucketRef {
	return s.bucket
}

// Function returns the compute unit.
func (s *Stack) Function() ComputeSpec {
	return s.function.clone()
}

// Endpoint returns the public entry point.
func (s *Stack) Endpoint() Endpoint {
	return s.endpoint
}

// Grants returns the grants attached to the function's execution role.
func (s *Stack) Grants() []Grant {
	return s.grants.List()
}

// Resources lists every declared resource in dependency order.
func (s *Stack) Resources() ([]tastack.ListResource, error) {
	b, err := s.builder()
	if err != nil {
		return nil, err
	}
	order, err := b.Order()
	if err != nil {
		return nil, err
	}
	tmpl, err := b.Build()
	if err != nil {
		return nil, err
	}
	out := make([]tastack.ListResource, 0, len(order))
	for _, name := range order {
		def := tmpl.Resources[name]
		out = append(out, tastack.ListResource{Name: name, Type: def.Type, DependsOn: def.DependsOn})
	}
	return out, nil
}

// WithoutResource returns a copy of the stack with a table removed, together
// with the grants and environment entries that name it. Only tables can be
// removed; every other resource is structural.
func (s *Stack) WithoutResource(logicalID string) (*Stack, error) {
	idx := -1
	for i, t := range s.tables {
		if t.LogicalID == logicalID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s is not a removable resource", logicalID)
	}

	out := &Stack{
		name:     s.name,
		bucket:   s.bucket,
		function: s.function.clone(),
		grants:   NewGrants(),
		endpoint: s.endpoint,
	}
	out.tables = append(append([]TableSpec(nil), s.tables[:idx]...), s.tables[idx+1:]...)
	for _, g := range s.grants.List() {
		if g.Kind == GrantTable && g.Target == logicalID {
			continue
		}
		out.grants.Add(g)
	}
	for key, value := range out.function.Environment {
		if ref, ok := value.(intrinsics.Ref); ok && ref.LogicalName == logicalID {
			delete(out.function.Environment, key)
		}
	}
	return out, nil
}
