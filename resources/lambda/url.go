package lambda

// Function URL auth types.
const (
	AuthTypeNone   = "NONE"
	AuthTypeAwsIam = "AWS_IAM"
)

// Url represents AWS::Lambda::Url.
type Url struct {
	AuthType          string `json:"AuthType"`
	TargetFunctionArn any    `json:"TargetFunctionArn"`
	Qualifier         string `json:"Qualifier,omitempty"`
}

// ResourceType returns "AWS::Lambda::Url".
func (Url) ResourceType() string {
	return "AWS::Lambda::Url"
}

// Permission represents AWS::Lambda::Permission.
type Permission struct {
	Action              string `json:"Action"`
	FunctionName        any    `json:"FunctionName"`
	Principal           string `json:"Principal"`
	FunctionUrlAuthType string `json:"FunctionUrlAuthType,omitempty"`
	SourceArn           any    `json:"SourceArn,omitempty"`
}

// ResourceType returns "AWS::Lambda::Permission".
func (Permission) ResourceType() string {
	return "AWS::Lambda::Permission"
}
