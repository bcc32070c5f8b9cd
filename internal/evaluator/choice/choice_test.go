package choice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-palace/internal/domain"
)

func request(answer string) domain.EvaluationRequest {
	return domain.EvaluationRequest{
		Question:       "What best describes: Osmosis?",
		ExpectedAnswer: "Water crossing a membrane",
		UserAnswer:     answer,
		Options:        []string{"Cell division", "Water crossing a membrane", "Energy storage"},
	}
}

func TestEvaluateCorrectChoice(t *testing.T) {
	for _, answer := range []string{"B", "b", "2", "water crossing a membrane"} {
		v, err := New().Evaluate(context.Background(), request(answer))
		require.NoError(t, err, "answer %q", answer)
		assert.True(t, v.Correct, "answer %q", answer)
		assert.Equal(t, 100, v.Score)
	}
}

func TestEvaluateWrongChoice(t *testing.T) {
	v, err := New().Evaluate(context.Background(), request("a"))
	require.NoError(t, err)
	assert.False(t, v.Correct)
	assert.Zero(t, v.Score)
	assert.Equal(t, "Wrong. Correct answer: B) Water crossing a membrane", v.Feedback)
}

func TestEvaluateRejectsUnknownChoice(t *testing.T) {
	_, err := New().Evaluate(context.Background(), request("z"))
	require.ErrorIs(t, err, domain.ErrInvalidChoice)

	req := request("a")
	req.Options = nil
	_, err = New().Evaluate(context.Background(), req)
	require.Error(t, err)
}

func TestEvaluateHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Evaluate(ctx, request("b"))
	require.ErrorIs(t, err, context.Canceled)
}
