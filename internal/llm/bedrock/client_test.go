package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ca-srg/prodsearch/internal/llm"
)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*bedrockruntime.InvokeModelOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestChat_BuildsClaudePayload(t *testing.T) {
	invoker := &mockInvoker{}
	var sent ChatRequest
	invoker.On("InvokeModel", mock.Anything, mock.MatchedBy(func(in *bedrockruntime.InvokeModelInput) bool {
		return json.Unmarshal(in.Body, &sent) == nil
	})).Return(&bedrockruntime.InvokeModelOutput{
		Body: []byte(`{"content":[{"type":"text","text":"{\"summary\":\"ok\"}"}],"usage":{"input_tokens":10,"output_tokens":5}}`),
	}, nil)

	client := newClient(invoker, "anthropic.claude-test", "us-east-1", zap.NewNop())
	req := llm.NewChatRequest("format", "be helpful", "show products")
	req.Temperature = 0.7
	req.MaxTokens = 1000

	out, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)

	assert.Equal(t, "bedrock-2023-05-31", sent.AnthropicVersion)
	assert.Equal(t, "be helpful", sent.System)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
	assert.Equal(t, 0.7, sent.Temperature)
	assert.Equal(t, 1000, sent.MaxTokens)
	invoker.AssertExpectations(t)
}

func TestChat_ClassifiesAPIErrors(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("InvokeModel", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"})

	client := newClient(invoker, "m", "us-east-1", nil)
	_, err := client.Chat(context.Background(), llm.NewChatRequest("extract", "", "q"))
	require.Error(t, err)

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, "bedrock", llmErr.Provider)
	assert.Equal(t, "extract", llmErr.Operation)
	assert.Equal(t, "ThrottlingException", llmErr.Code)
	assert.True(t, llmErr.Retryable)
}

func TestChat_EmptyContent(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("InvokeModel", mock.Anything, mock.Anything).
		Return(&bedrockruntime.InvokeModelOutput{Body: []byte(`{"content":[]}`)}, nil)

	client := newClient(invoker, "m", "us-east-1", nil)
	_, err := client.Chat(context.Background(), llm.NewChatRequest("extract", "", "q"))
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestChat_RejectsSystemOnlyConversation(t *testing.T) {
	client := newClient(&mockInvoker{}, "m", "us-east-1", nil)
	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleSystem, Content: "x"}},
	})
	assert.Error(t, err)
}
