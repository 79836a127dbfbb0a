package stack

import "github.com/lex00/tastack-go/intrinsics"

// BucketName is the pre-existing document bucket.
const BucketName = "teaching-assistant-tavily"

// BucketRef is a read-only handle on a bucket the stack does not own. It is
// never rendered as a resource, only as grant targets and an environment value.
type BucketRef struct {
	Name string
}

// ExternalBucket references an existing bucket by name.
func ExternalBucket(name string) BucketRef {
	return BucketRef{Name: name}
}

// Arn resolves to the bucket ARN.
func (b BucketRef) Arn() intrinsics.Join {
	return intrinsics.BucketArn(b.Name)
}

// ObjectsArn resolves to the ARN pattern of every object in the bucket.
func (b BucketRef) ObjectsArn() intrinsics.Join {
	return intrinsics.BucketObjectsArn(b.Name)
}
