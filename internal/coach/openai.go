package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/cadence/internal/types"
)

// Compile-time interface check
var _ Service = (*OpenAI)(nil)

// CompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type CompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the coach service using OpenAI's API.
type OpenAI struct {
	completions CompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates a new OpenAI coach service.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

// langInstruction maps a language to the reply-language directive.
func langInstruction(lang types.Language) string {
	switch lang {
	case types.LangRussian:
		return "Answer only in Russian."
	case types.LangEnglish:
		return "Answer only in English."
	default:
		return "Answer only in Uzbek."
	}
}

// GeneratePlan asks the model for a strict JSON plan. Any upstream or parse
// failure degrades to the built-in fallback plan.
func (o *OpenAI) GeneratePlan(ctx context.Context, goal string, lang types.Language, days int, intensity types.PlanIntensity) []types.DailyPlan {
	if days <= 0 {
		days = DefaultPlanDays
	}
	if intensity == "" {
		intensity = types.IntensityMedium
	}

	system := "You are a strict AI discipline coach. Divide goals into actionable micro-tasks. " +
		langInstruction(lang) +
		" Respond with only a JSON array of objects {\"day\": int, \"focus\": string, \"tasks\": [string]}, no prose."
	prompt := fmt.Sprintf(
		"Create a strict %d-day discipline plan with %s intensity for the goal: %q. Give 2-3 tasks per day.",
		days, intensity, goal)

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		}),
		Model: openai.F(o.model),
	})
	if err != nil {
		slog.Warn("plan generation failed, serving fallback", "error", err)
		return FallbackPlan(lang)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("plan generation returned no choices, serving fallback")
		return FallbackPlan(lang)
	}

	plan, err := parsePlan(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("plan generation returned unparsable output, serving fallback", "error", err)
		return FallbackPlan(lang)
	}
	return plan
}

// Chat asks the model for a short coach reply. Upstream failure degrades to
// the built-in apology line.
func (o *OpenAI) Chat(ctx context.Context, history []types.ChatMessage, message string, lang types.Language) string {
	system := "You are a strict but fair discipline coach. " +
		"Keep answers short (max 3 sentences), impactful, and motivating. " +
		langInstruction(lang)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
	}
	for _, msg := range history {
		if msg.Role == types.RoleModel {
			messages = append(messages, openai.AssistantMessage(msg.Text))
		} else {
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}
	messages = append(messages, openai.UserMessage(message))

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(o.model),
	})
	if err != nil {
		slog.Warn("coach chat failed, serving fallback", "error", err)
		return FallbackReply(lang)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return FallbackReply(lang)
	}
	return resp.Choices[0].Message.Content
}

// parsePlan decodes the model output into a plan, tolerating code fences.
func parsePlan(raw string) ([]types.DailyPlan, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var plan []types.DailyPlan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("decode plan: empty plan")
	}
	for i := range plan {
		if plan[i].Day == 0 {
			plan[i].Day = i + 1
		}
	}
	return plan, nil
}
