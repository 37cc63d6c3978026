/*
Package advisor provides advisory bias/consistency commentary on grade
distributions.

PURPOSE:
  Given a textual summary of per-evaluator grade distributions and a
  description of the expected distribution, returns structured
  commentary an evaluation panel can review. Purely advisory: nothing
  here is ever consulted by the reconciliation or payout paths, and a
  failing advisor never blocks an evaluation.

IMPLEMENTATIONS:
  - Disabled: the default, returns ErrAdvisorDisabled
  - GPT: YandexGPT-backed, prompts for strict JSON and parses it

SEE ALSO:
  - api/handlers.go: The only caller
*/
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	yandexgpt "github.com/sheeiavellie/go-yandexgpt"
)

// =============================================================================
// CONTRACT
// =============================================================================

// Finding is one observation about a single evaluator's grading.
type Finding struct {
	Evaluator   string `json:"evaluator"`
	Observation string `json:"observation"`
}

// Commentary is the advisor's structured review.
type Commentary struct {
	Summary             string    `json:"summary"`
	OverallDistribution []string  `json:"overall_distribution"`
	Findings            []Finding `json:"findings"`
}

// Provider produces commentary from a distribution summary and the
// description of the expected distribution.
type Provider interface {
	Commentary(ctx context.Context, distributionSummary, expectedDistribution string) (Commentary, error)
}

// ErrAdvisorDisabled is returned when no advisor is configured.
var ErrAdvisorDisabled = errors.New("advisor is not configured")

// Disabled is the default no-op provider.
type Disabled struct{}

func (Disabled) Commentary(context.Context, string, string) (Commentary, error) {
	return Commentary{}, ErrAdvisorDisabled
}

// =============================================================================
// YANDEXGPT-BACKED PROVIDER
// =============================================================================

const systemPrompt = `You review grade distributions assigned by performance evaluators.
Compare the reported per-evaluator distributions against the expected distribution.
Point out evaluators whose grading looks inconsistent or biased relative to the rest.
Respond with STRICT JSON only, no prose outside it, in this shape:
{"summary": "...", "overall_distribution": ["..."], "findings": [{"evaluator": "...", "observation": "..."}]}`

// GPT is a YandexGPT-backed Provider.
type GPT struct {
	client    *yandexgpt.YandexGPTClient
	catalogID string
}

// NewGPT builds a provider from an IAM token and catalog id.
func NewGPT(token, catalogID string) *GPT {
	return &GPT{
		client:    yandexgpt.NewYandexGPTClientWithIAMToken(token),
		catalogID: catalogID,
	}
}

func (g *GPT) Commentary(ctx context.Context, distributionSummary, expectedDistribution string) (Commentary, error) {
	request := yandexgpt.YandexGPTRequest{
		ModelURI: yandexgpt.MakeModelURI(g.catalogID, yandexgpt.YandexGPTModelLite),
		CompletionOptions: yandexgpt.YandexGPTCompletionOptions{
			Stream:      false,
			Temperature: 0.2,
			MaxTokens:   2000,
		},
		Messages: []yandexgpt.YandexGPTMessage{
			{Role: yandexgpt.YandexGPTMessageRoleSystem, Text: systemPrompt},
			{Role: yandexgpt.YandexGPTMessageRoleUser, Text: "Reported distributions:\n" + distributionSummary + "\n\nExpected distribution:\n" + expectedDistribution},
		},
	}

	response, err := g.client.CreateRequest(ctx, request)
	if err != nil {
		return Commentary{}, fmt.Errorf("advisor request failed: %w", err)
	}
	if len(response.Result.Alternatives) == 0 {
		return Commentary{}, errors.New("advisor returned no alternatives")
	}

	text := response.Result.Alternatives[0].Message.Text
	return parseCommentary(text)
}

// parseCommentary tolerates models that wrap the JSON in code fences.
func parseCommentary(text string) (Commentary, error) {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var c Commentary
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return Commentary{}, fmt.Errorf("advisor returned unparseable commentary: %w", err)
	}
	return c, nil
}
