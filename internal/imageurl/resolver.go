package imageurl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	s3Scheme      = "s3://"
	defaultRegion = "us-east-2"
	defaultTTL    = 15 * time.Minute
)

// Modes supported by the resolver
const (
	ModePublic  = "public"
	ModePresign = "presign"
)

// Presigner signs S3 GetObject requests
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Resolver turns stored s3:// image URIs into browser-loadable https URLs.
// Anything that is not an s3:// URI is returned unchanged, so resolving an
// already resolved URL is a no-op.
type Resolver struct {
	region    string
	presigner Presigner
	ttl       time.Duration
	logger    *zap.Logger
}

// NewPublicResolver returns a resolver producing virtual-hosted S3 URLs
func NewPublicResolver(region string) *Resolver {
	if region == "" {
		region = defaultRegion
	}
	return &Resolver{region: region, logger: zap.NewNop()}
}

// NewPresignResolver returns a resolver producing presigned GET URLs valid for
// ttl. Signing failures fall back to the public URL.
func NewPresignResolver(region string, presigner Presigner, ttl time.Duration, logger *zap.Logger) *Resolver {
	r := NewPublicResolver(region)
	r.presigner = presigner
	r.ttl = ttl
	if r.ttl <= 0 {
		r.ttl = defaultTTL
	}
	if logger != nil {
		r.logger = logger.Named("imageurl")
	}
	return r
}

// NewFromConfig builds a resolver for mode using the shared AWS config
func NewFromConfig(mode, region string, awsCfg aws.Config, ttl time.Duration, logger *zap.Logger) (*Resolver, error) {
	switch mode {
	case "", ModePublic:
		return NewPublicResolver(region), nil
	case ModePresign:
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if region != "" {
				o.Region = region
			}
		})
		return NewPresignResolver(region, s3.NewPresignClient(client), ttl, logger), nil
	default:
		return nil, fmt.Errorf("unsupported image URL mode: %s", mode)
	}
}

// Resolve returns the https URL for uri
func (r *Resolver) Resolve(ctx context.Context, uri string) string {
	bucket, key, ok := splitS3URI(uri)
	if !ok {
		return uri
	}

	if r.presigner != nil && key != "" {
		req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(r.ttl))
		if err == nil && req != nil && req.URL != "" {
			return req.URL
		}
		r.logger.Warn("failed to presign image URL, using public URL",
			zap.String("bucket", bucket),
			zap.Error(err),
		)
	}
	return PublicURL(bucket, key, r.region)
}

// PublicURL formats the virtual-hosted style URL of an S3 object
func PublicURL(bucket, key, region string) string {
	if region == "" {
		region = defaultRegion
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

func splitS3URI(uri string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}
