package stack

import (
	"github.com/lex00/tastack-go/intrinsics"
	"github.com/lex00/tastack-go/resources/lambda"
)

// Endpoint is the function's public invocation URL.
type Endpoint struct {
	LogicalID  string
	FunctionID string
	AuthType   string
}

func newEndpoint(functionID string) Endpoint {
	return Endpoint{
		LogicalID:  FunctionURLID,
		FunctionID: functionID,
		AuthType:   lambda.AuthTypeNone,
	}
}

// Resource renders the endpoint as AWS::Lambda::Url.
func (e Endpoint) Resource() lambda.Url {
	return lambda.Url{
		AuthType:          e.AuthType,
		TargetFunctionArn: intrinsics.GetAtt{LogicalName: e.FunctionID, Attribute: "Arn"},
	}
}

// Permission lets anyone invoke the function through its URL.
func (e Endpoint) Permission() lambda.Permission {
	return lambda.Permission{
		Action:              "lambda:InvokeFunctionUrl",
		FunctionName:        intrinsics.GetAtt{LogicalName: e.FunctionID, Attribute: "Arn"},
		Principal:           intrinsics.AllPrincipal,
		FunctionUrlAuthType: e.AuthType,
	}
}

// URL resolves to the deployed function URL.
func (e Endpoint) URL() intrinsics.GetAtt {
	return intrinsics.GetAtt{LogicalName: e.LogicalID, Attribute: "FunctionUrl"}
}
