package imageurl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPresigner struct {
	mock.Mock
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(*params.Bucket, *params.Key)
	if req := args.Get(0); req != nil {
		return req.(*v4.PresignedHTTPRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestResolve_Public(t *testing.T) {
	r := NewPublicResolver("")
	ctx := context.Background()

	assert.Equal(t, "https://shop.s3.us-east-2.amazonaws.com/img/a.png", r.Resolve(ctx, "s3://shop/img/a.png"))
	assert.Equal(t, "https://shop.s3.us-east-2.amazonaws.com/", r.Resolve(ctx, "s3://shop"))
	assert.Equal(t, "https://cdn.example.com/a.png", r.Resolve(ctx, "https://cdn.example.com/a.png"))
	assert.Equal(t, "", r.Resolve(ctx, ""))
	assert.Equal(t, "s3://", r.Resolve(ctx, "s3://"))
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewPublicResolver("eu-west-1")
	ctx := context.Background()
	once := r.Resolve(ctx, "s3://bucket/key.jpg")
	assert.Equal(t, once, r.Resolve(ctx, once))
}

func TestResolve_Presign(t *testing.T) {
	presigner := &mockPresigner{}
	presigner.On("PresignGetObject", "shop", "img/a.png").
		Return(&v4.PresignedHTTPRequest{URL: "https://shop.s3.amazonaws.com/img/a.png?X-Amz-Signature=abc"}, nil)

	r := NewPresignResolver("us-east-1", presigner, time.Minute, zap.NewNop())
	assert.Equal(t, "https://shop.s3.amazonaws.com/img/a.png?X-Amz-Signature=abc", r.Resolve(context.Background(), "s3://shop/img/a.png"))
	presigner.AssertExpectations(t)
}

func TestResolve_PresignFailureFallsBackToPublic(t *testing.T) {
	presigner := &mockPresigner{}
	presigner.On("PresignGetObject", "shop", "a.png").Return(nil, errors.New("no credentials"))

	r := NewPresignResolver("us-east-1", presigner, 0, nil)
	assert.Equal(t, "https://shop.s3.us-east-1.amazonaws.com/a.png", r.Resolve(context.Background(), "s3://shop/a.png"))
}

func TestNewFromConfig_UnknownMode(t *testing.T) {
	_, err := NewFromConfig("signed", "", awsConfigForTest(), time.Minute, nil)
	require.Error(t, err)
}

func awsConfigForTest() aws.Config {
	return aws.Config{Region: "us-east-1"}
}
