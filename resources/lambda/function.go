// Package lambda provides the AWS::Lambda resource types used by the stack.
package lambda

// Package types.
const (
	PackageTypeImage = "Image"
	PackageTypeZip   = "Zip"
)

// Instruction set architectures.
const (
	ArchitectureArm64  = "arm64"
	ArchitectureX86_64 = "x86_64"
)

// Function represents AWS::Lambda::Function.
type Function struct {
	FunctionName  any                   `json:"FunctionName,omitempty"`
	Description   string                `json:"Description,omitempty"`
	Code          Function_Code         `json:"Code"`
	PackageType   string                `json:"PackageType,omitempty"`
	ImageConfig   *Function_ImageConfig `json:"ImageConfig,omitempty"`
	Role          any                   `json:"Role"`
	MemorySize    int                   `json:"MemorySize,omitempty"`
	Timeout       int                   `json:"Timeout,omitempty"`
	Architectures []string              `json:"Architectures,omitempty"`
	Environment   *Function_Environment `json:"Environment,omitempty"`
}

// ResourceType returns "AWS::Lambda::Function".
func (Function) ResourceType() string {
	return "AWS::Lambda::Function"
}

// Function_Code locates the deployment package. Image functions set ImageUri.
type Function_Code struct {
	ImageUri any    `json:"ImageUri,omitempty"`
	ZipFile  string `json:"ZipFile,omitempty"`
}

// Function_ImageConfig overrides the container image's CMD, ENTRYPOINT and WORKDIR.
type Function_ImageConfig struct {
	Command          []string `json:"Command,omitempty"`
	EntryPoint       []string `json:"EntryPoint,omitempty"`
	WorkingDirectory string   `json:"WorkingDirectory,omitempty"`
}

// Function_Environment holds the function's environment variables.
type Function_Environment struct {
	Variables map[string]any `json:"Variables,omitempty"`
}
