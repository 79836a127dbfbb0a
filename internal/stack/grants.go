package stack

import (
	"fmt"
)

// Capability is the access a grant confers.
type Capability string

const (
	CapabilityRead      Capability = "read"
	CapabilityWrite     Capability = "write"
	CapabilityReadWrite Capability = "readwrite"
	CapabilityManaged   Capability = "managed-policy"
)

// GrantKind identifies what a grant targets.
type GrantKind string

const (
	GrantTable   GrantKind = "table"
	GrantBucket  GrantKind = "bucket"
	GrantManaged GrantKind = "managed-policy"
)

// Managed policies attached to the execution role.
const (
	BasicExecutionPolicy = "service-role/AWSLambdaBasicExecutionRole"
	BedrockFullAccess    = "AmazonBedrockFullAccess"
	S3FullAccess         = "AmazonS3FullAccess"
)

// Grant authorizes one subject identity against one target. Grants flow from
// target to subject only.
type Grant struct {
	// Subject is the logical ID of the receiving role.
	Subject    string
	Kind       GrantKind
	Target     string
	Capability Capability
}

func (g Grant) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", g.Subject, g.Kind, g.Target, g.Capability)
}

func (g Grant) String() string {
	return fmt.Sprintf("%s %s:%s -> %s", g.Capability, g.Kind, g.Target, g.Subject)
}

// Grants is an insertion-ordered set of grants. Adding a grant twice is a no-op.
type Grants struct {
	order []Grant
	index map[string]struct{}
}

// NewGrants returns an empty grant set.
func NewGrants() *Grants {
	return &Grants{index: make(map[string]struct{})}
}

// Add records a grant. It reports whether the grant was new.
func (g *Grants) Add(grant Grant) bool {
	k := grant.key()
	if _, ok := g.index[k]; ok {
		return false
	}
	g.index[k] = struct{}{}
	g.order = append(g.order, grant)
	return true
}

// Len returns the number of distinct grants.
func (g *Grants) Len() int {
	return len(g.order)
}

// List returns the grants in the order they were first added.
func (g *Grants) List() []Grant {
	return append([]Grant(nil), g.order...)
}

// Filter returns the grants of one kind.
func (g *Grants) Filter(kind GrantKind) []Grant {
	var out []Grant
	for _, grant := range g.order {
		if grant.Kind == kind {
			out = append(out, grant)
		}
	}
	return out
}

// Table read and write actions, matching grantReadData and grantWriteData.
var (
	tableReadActions = []string{
		"dynamodb:BatchGetItem",
		"dynamodb:GetRecords",
		"dynamodb:GetShardIterator",
		"dynamodb:Query",
		"dynamodb:GetItem",
		"dynamodb:Scan",
		"dynamodb:ConditionCheckItem",
	}
	tableWriteActions = []string{
		"dynamodb:BatchWriteItem",
		"dynamodb:PutItem",
		"dynamodb:UpdateItem",
		"dynamodb:DeleteItem",
	}
	bucketReadActions = []string{
		"s3:GetObject*",
		"s3:GetBucket*",
		"s3:List*",
	}
	bucketWriteActions = []string{
		"s3:DeleteObject*",
		"s3:PutObject",
		"s3:PutObjectLegalHold",
		"s3:PutObjectRetention",
		"s3:PutObjectTagging",
		"s3:PutObjectVersionTagging",
		"s3:Abort*",
	}
)

// TableActions returns the DynamoDB actions a capability allows.
func TableActions(c Capability) []string {
	var actions []string
	if c == CapabilityRead || c == CapabilityReadWrite {
		actions = append(actions, tableReadActions...)
	}
	if c == CapabilityWrite || c == CapabilityReadWrite {
		actions = append(actions, tableWriteActions...)
	}
	if len(actions) > 0 {
		actions = append(actions, "dynamodb:DescribeTable")
	}
	return actions
}

// BucketActions returns the S3 actions a capability allows.
func BucketActions(c Capability) []string {
	var actions []string
	if c == CapabilityRead || c == CapabilityReadWrite {
		actions = append(actions, bucketReadActions...)
	}
	if c == CapabilityWrite || c == CapabilityReadWrite {
		actions = append(actions, bucketWriteActions...)
	}
	return actions
}

// declareGrants attaches the managed policies and the scoped data-plane grants
// to the function's execution role.
func (s *Stack) declareGrants() {
	role := s.function.RoleID
	for _, policy := range []string{BedrockFullAccess, S3FullAccess} {
		s.grants.Add(Grant{Subject: role, Kind: GrantManaged, Target: policy, Capability: CapabilityManaged})
	}
	for _, t := range s.tables {
		s.grants.Add(Grant{Subject: role, Kind: GrantTable, Target: t.LogicalID, Capability: CapabilityReadWrite})
	}
	s.grants.Add(Grant{Subject: role, Kind: GrantBucket, Target: s.bucket.Name, Capability: CapabilityReadWrite})
}
