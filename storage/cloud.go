package storage

import (
	"context"
	"strings"

	"github.com/janelia-flyem/catvol/catvol"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// OpenBucket returns a blob.Bucket for the given reference.
// The reference should be of the form:
//
//	gs://<bucketname>[/<prefix>]   (gcs://<bucketname> is also accepted)
//	s3://<bucketname>[/<prefix>]   (requires AWS_REGION and AWS credentials)
//	file:///<directory>
//	mem://
func OpenBucket(ref string) (*blob.Bucket, error) {
	ctx := context.Background()
	if strings.HasPrefix(ref, "gcs://") {
		ref = "gs://" + strings.TrimPrefix(ref, "gcs://")
	}
	var prefix string
	for _, scheme := range []string{"gs://", "s3://"} {
		if strings.HasPrefix(ref, scheme) {
			parts := strings.SplitN(strings.TrimPrefix(ref, scheme), "/", 2)
			if len(parts) == 2 && parts[1] != "" {
				prefix = strings.TrimSuffix(parts[1], "/") + "/"
			}
			ref = scheme + parts[0]
		}
	}
	bucket, err := blob.OpenBucket(ctx, ref)
	if err != nil {
		catvol.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
		return nil, err
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return bucket, nil
}
