package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabled_ReturnsSentinel(t *testing.T) {
	_, err := Disabled{}.Commentary(context.Background(), "summary", "expected")
	assert.ErrorIs(t, err, ErrAdvisorDisabled)
}

func TestParseCommentary_PlainJSON(t *testing.T) {
	text := `{"summary": "skewed", "overall_distribution": ["S: 40%"], "findings": [{"evaluator": "mgr-1", "observation": "grades everyone S"}]}`
	c, err := parseCommentary(text)
	require.NoError(t, err)
	assert.Equal(t, "skewed", c.Summary)
	require.Len(t, c.Findings, 1)
	assert.Equal(t, "mgr-1", c.Findings[0].Evaluator)
}

func TestParseCommentary_CodeFenced(t *testing.T) {
	// Models wrap JSON in fences despite instructions; tolerate it.
	text := "```json\n{\"summary\": \"ok\", \"overall_distribution\": [], \"findings\": []}\n```"
	c, err := parseCommentary(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", c.Summary)
}

func TestParseCommentary_NotJSON(t *testing.T) {
	_, err := parseCommentary("the distribution looks fine to me")
	assert.Error(t, err)
}
