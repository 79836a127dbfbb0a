// Package deploy hands a synthesized template to CloudFormation.
//
// The template is submitted as a change set, executed, and awaited. The
// engine owns reconciliation; this package only submits and reports.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/asset"
	"github.com/lex00/tastack-go/internal/template"
)

// DefaultMaxWait bounds each wait on the CloudFormation control plane.
const DefaultMaxWait = 30 * time.Minute

// ErrImageNotPublished is returned when the asset tag is missing from the asset repository.
var ErrImageNotPublished = errors.New("image asset not published")

// ErrNotBootstrapped is returned when the asset repository does not exist.
var ErrNotBootstrapped = errors.New("asset repository not found")

// CloudFormationAPI is the subset of the CloudFormation client used for deployment.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateChangeSet(ctx context.Context, params *cloudformation.CreateChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateChangeSetOutput, error)
	DescribeChangeSet(ctx context.Context, params *cloudformation.DescribeChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeChangeSetOutput, error)
	ExecuteChangeSet(ctx context.Context, params *cloudformation.ExecuteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ExecuteChangeSetOutput, error)
	DeleteChangeSet(ctx context.Context, params *cloudformation.DeleteChangeSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteChangeSetOutput, error)
}

// ECRAPI is the subset of the ECR client used to check published images.
type ECRAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// STSAPI is the subset of the STS client used to resolve the caller account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Deployer submits templates through the AWS clients it holds.
type Deployer struct {
	CloudFormation CloudFormationAPI
	ECR            ECRAPI
	STS            STSAPI
	Region         string

	// MaxWait bounds each wait. Zero means DefaultMaxWait.
	MaxWait time.Duration
	// PollInterval overrides the waiter delay when non-zero.
	PollInterval time.Duration
}

// NewFromConfig builds a Deployer from the default AWS credential chain.
// An empty region defers to the environment and shared config.
func NewFromConfig(ctx context.Context, region string) (*Deployer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Deployer{
		CloudFormation: cloudformation.NewFromConfig(cfg),
		ECR:            ecr.NewFromConfig(cfg),
		STS:            sts.NewFromConfig(cfg),
		Region:         cfg.Region,
	}, nil
}

// Request describes one deployment.
type Request struct {
	StackName     string
	Template      *tastack.Template
	ChangeSetName string
	Description   string
}

// Result reports the outcome of a deployment.
type Result struct {
	StackName     string
	ChangeSetType cftypes.ChangeSetType
	NoChanges     bool
	Outputs       map[string]string
}

// Output returns a stack output value, or "" when absent.
func (r *Result) Output(key string) string {
	return r.Outputs[key]
}

// Deploy submits req.Template as a change set and waits for the stack to settle.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*Result, error) {
	if req.StackName == "" {
		return nil, errors.New("stack name is required")
	}
	if req.Template == nil {
		return nil, errors.New("template is required")
	}
	body, err := template.ToJSON(req.Template)
	if err != nil {
		return nil, fmt.Errorf("serializing template: %w", err)
	}

	exists, err := d.stackExists(ctx, req.StackName)
	if err != nil {
		return nil, err
	}
	changeSetType := cftypes.ChangeSetTypeCreate
	if exists {
		changeSetType = cftypes.ChangeSetTypeUpdate
	}

	changeSetName := req.ChangeSetName
	if changeSetName == "" {
		changeSetName = fmt.Sprintf("tastack-%d", time.Now().Unix())
	}

	log.Info().
		Str("stack", req.StackName).
		Str("change_set", changeSetName).
		Str("type", string(changeSetType)).
		Msg("creating change set")

	created, err := d.CloudFormation.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(req.StackName),
		ChangeSetName: aws.String(changeSetName),
		ChangeSetType: changeSetType,
		TemplateBody:  aws.String(string(body)),
		Description:   optionalString(req.Description),
		Capabilities:  []cftypes.Capability{cftypes.CapabilityCapabilityIam},
	})
	if err != nil {
		return nil, fmt.Errorf("creating change set: %w", err)
	}
	changeSetID := aws.ToString(created.Id)
	if changeSetID == "" {
		changeSetID = changeSetName
	}

	result := &Result{StackName: req.StackName, ChangeSetType: changeSetType}

	describe := &cloudformation.DescribeChangeSetInput{
		StackName:     aws.String(req.StackName),
		ChangeSetName: aws.String(changeSetID),
	}
	waiter := cloudformation.NewChangeSetCreateCompleteWaiter(d.CloudFormation, func(o *cloudformation.ChangeSetCreateCompleteWaiterOptions) {
		if d.PollInterval > 0 {
			o.MinDelay, o.MaxDelay = d.PollInterval, d.PollInterval
		}
	})
	if err := waiter.Wait(ctx, describe, d.maxWait()); err != nil {
		empty, reason := d.emptyChangeSet(ctx, describe)
		if !empty {
			if reason != "" {
				return nil, fmt.Errorf("change set %s failed: %s", changeSetName, reason)
			}
			return nil, fmt.Errorf("waiting for change set: %w", err)
		}
		log.Info().Str("stack", req.StackName).Msg("no changes to deploy")
		if _, err := d.CloudFormation.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
			StackName:     aws.String(req.StackName),
			ChangeSetName: aws.String(changeSetID),
		}); err != nil {
			log.Warn().Err(err).Str("change_set", changeSetName).Msg("deleting empty change set")
		}
		result.NoChanges = true
		if exists {
			outputs, err := d.outputs(ctx, req.StackName)
			if err != nil {
				return nil, err
			}
			result.Outputs = outputs
		}
		return result, nil
	}

	if _, err := d.CloudFormation.ExecuteChangeSet(ctx, &cloudformation.ExecuteChangeSetInput{
		StackName:     aws.String(req.StackName),
		ChangeSetName: aws.String(changeSetID),
	}); err != nil {
		return nil, fmt.Errorf("executing change set: %w", err)
	}

	log.Info().Str("stack", req.StackName).Msg("waiting for stack")
	if err := d.waitForStack(ctx, req.StackName, changeSetType); err != nil {
		return nil, err
	}

	outputs, err := d.outputs(ctx, req.StackName)
	if err != nil {
		return nil, err
	}
	result.Outputs = outputs
	return result, nil
}

// CheckImagePublished verifies the asset's tag exists in the bootstrap asset repository.
func (d *Deployer) CheckImagePublished(ctx context.Context, image asset.ImageAsset, qualifier string) error {
	identity, err := d.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("resolving caller identity: %w", err)
	}
	account := aws.ToString(identity.Account)
	if d.Region == "" {
		return errors.New("region is not configured")
	}
	repository := asset.RepositoryName(qualifier, account, d.Region)

	out, err := d.ECR.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(repository),
		ImageIds:       []ecrtypes.ImageIdentifier{{ImageTag: aws.String(image.Tag())}},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ImageNotFoundException":
				return fmt.Errorf("%w: %s:%s", ErrImageNotPublished, repository, image.Tag())
			case "RepositoryNotFoundException":
				return fmt.Errorf("%w: %s (bootstrap the account with qualifier %q)", ErrNotBootstrapped, repository, qualifier)
			}
		}
		return fmt.Errorf("describing image %s:%s: %w", repository, image.Tag(), err)
	}
	if len(out.ImageDetails) == 0 {
		return fmt.Errorf("%w: %s:%s", ErrImageNotPublished, repository, image.Tag())
	}
	log.Debug().Str("repository", repository).Str("tag", image.Tag()).Msg("image asset published")
	return nil
}

func (d *Deployer) stackExists(ctx context.Context, name string) (bool, error) {
	out, err := d.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("describing stack %s: %w", name, err)
	}
	for _, s := range out.Stacks {
		// A stack left in review by a never-executed create change set has no resources yet.
		if s.StackStatus == cftypes.StackStatusReviewInProgress {
			return false, nil
		}
	}
	return len(out.Stacks) > 0, nil
}

func (d *Deployer) emptyChangeSet(ctx context.Context, input *cloudformation.DescribeChangeSetInput) (bool, string) {
	out, err := d.CloudFormation.DescribeChangeSet(ctx, input)
	if err != nil {
		return false, ""
	}
	reason := aws.ToString(out.StatusReason)
	if out.Status != cftypes.ChangeSetStatusFailed {
		return false, reason
	}
	return isNoChangesReason(reason), reason
}

func (d *Deployer) waitForStack(ctx context.Context, name string, changeSetType cftypes.ChangeSetType) error {
	input := &cloudformation.DescribeStacksInput{StackName: aws.String(name)}
	var err error
	if changeSetType == cftypes.ChangeSetTypeCreate {
		err = cloudformation.NewStackCreateCompleteWaiter(d.CloudFormation, func(o *cloudformation.StackCreateCompleteWaiterOptions) {
			if d.PollInterval > 0 {
				o.MinDelay, o.MaxDelay = d.PollInterval, d.PollInterval
			}
		}).Wait(ctx, input, d.maxWait())
	} else {
		err = cloudformation.NewStackUpdateCompleteWaiter(d.CloudFormation, func(o *cloudformation.StackUpdateCompleteWaiterOptions) {
			if d.PollInterval > 0 {
				o.MinDelay, o.MaxDelay = d.PollInterval, d.PollInterval
			}
		}).Wait(ctx, input, d.maxWait())
	}
	if err != nil {
		return fmt.Errorf("waiting for stack %s: %w", name, err)
	}
	return nil
}

func (d *Deployer) outputs(ctx context.Context, name string) (map[string]string, error) {
	out, err := d.CloudFormation.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("reading outputs of %s: %w", name, err)
	}
	outputs := make(map[string]string)
	for _, s := range out.Stacks {
		for _, o := range s.Outputs {
			outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
		}
	}
	return outputs, nil
}

func (d *Deployer) maxWait() time.Duration {
	if d.MaxWait > 0 {
		return d.MaxWait
	}
	return DefaultMaxWait
}

func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func isNoChangesReason(reason string) bool {
	return strings.Contains(reason, "didn't contain changes") ||
		strings.Contains(reason, "No updates are to be performed")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
