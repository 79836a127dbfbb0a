package stack

import (
	"github.com/lex00/tastack-go/internal/asset"
	"github.com/lex00/tastack-go/internal/config"
	"github.com/lex00/tastack-go/intrinsics"
	"github.com/lex00/tastack-go/resources/lambda"
)

// Compute unit sizing.
const (
	MemorySize   = 256
	Timeout      = 30
	Architecture = lambda.ArchitectureArm64
)

// Environment keys the container image reads.
const (
	EnvTableName           = "TABLE_NAME"
	EnvPineconeAPIKey      = config.PineconeAPIKey
	EnvAPIKey              = config.APIKey
	EnvBucket              = "S3_BUCKET"
	EnvProcessedFilesTable = "PROCESSED_FILES_TABLE"
)

// EnvironmentKeys lists the keys of the function environment.
func EnvironmentKeys() []string {
	return []string{EnvTableName, EnvPineconeAPIKey, EnvAPIKey, EnvBucket, EnvProcessedFilesTable}
}

// ComputeSpec declares the container-image function.
type ComputeSpec struct {
	LogicalID    string
	RoleID       string
	Image        any
	Command      []string
	MemorySize   int
	Timeout      int
	Architecture string
	Environment  map[string]any
}

func newCompute(cfg config.Config, image asset.ImageSource, tables []TableSpec) ComputeSpec {
	env := map[string]any{
		EnvPineconeAPIKey: cfg.Secret(config.PineconeAPIKey),
		EnvAPIKey:         cfg.Secret(config.APIKey),
		EnvBucket:         BucketName,
	}
	for _, t := range tables {
		switch t.LogicalID {
		case QueriesTableID:
			env[EnvTableName] = t.NameRef()
		case ProcessedFilesTableID:
			env[EnvProcessedFilesTable] = t.NameRef()
		}
	}

	return ComputeSpec{
		LogicalID:    FunctionID,
		RoleID:       RoleID,
		Image:        image.URI(cfg.Qualifier),
		Command:      []string{cfg.EntryPoint},
		MemorySize:   MemorySize,
		Timeout:      Timeout,
		Architecture: Architecture,
		Environment:  env,
	}
}

func (c ComputeSpec) clone() ComputeSpec {
	out := c
	out.Command = append([]string(nil), c.Command...)
	out.Environment = make(map[string]any, len(c.Environment))
	for k, v := range c.Environment {
		out.Environment[k] = v
	}
	return out
}

// Resource renders the function as AWS::Lambda::Function.
func (c ComputeSpec) Resource() lambda.Function {
	return lambda.Function{
		Code:          lambda.Function_Code{ImageUri: c.Image},
		PackageType:   lambda.PackageTypeImage,
		ImageConfig:   &lambda.Function_ImageConfig{Command: c.Command},
		Role:          intrinsics.GetAtt{LogicalName: c.RoleID, Attribute: "Arn"},
		MemorySize:    c.MemorySize,
		Timeout:       c.Timeout,
		Architectures: []string{c.Architecture},
		Environment:   &lambda.Function_Environment{Variables: c.Environment},
	}
}
