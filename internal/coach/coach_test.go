package coach

import (
	"context"
	"testing"

	"github.com/hyperengineering/cadence/internal/types"
)

func TestNew_FallbackWithoutKey(t *testing.T) {
	if _, ok := New("", "gpt-4o-mini").(*Fallback); !ok {
		t.Error("Expected fallback service without an API key")
	}
	if _, ok := New("sk-test", "gpt-4o-mini").(*OpenAI); !ok {
		t.Error("Expected OpenAI service with an API key")
	}
}

func TestFallbackPlan_PerLanguage(t *testing.T) {
	for _, lang := range []types.Language{types.LangUzbek, types.LangRussian, types.LangEnglish} {
		plan := FallbackPlan(lang)
		if len(plan) != 3 {
			t.Errorf("%s: expected 3-day fallback plan, got %d", lang, len(plan))
		}
		for i, day := range plan {
			if day.Day != i+1 {
				t.Errorf("%s: expected day %d, got %d", lang, i+1, day.Day)
			}
			if len(day.Tasks) == 0 {
				t.Errorf("%s day %d: expected tasks", lang, day.Day)
			}
		}
	}

	// Unknown language falls back to Uzbek
	unknown := FallbackPlan(types.Language("de"))
	uz := FallbackPlan(types.LangUzbek)
	if unknown[0].Focus != uz[0].Focus {
		t.Errorf("Expected Uzbek default, got %q", unknown[0].Focus)
	}
}

func TestFallbackPlan_ReturnsCopy(t *testing.T) {
	plan := FallbackPlan(types.LangEnglish)
	plan[0].Focus = "mutated"
	plan[0].Tasks[0] = "mutated"

	fresh := FallbackPlan(types.LangEnglish)
	if fresh[0].Focus == "mutated" || fresh[0].Tasks[0] == "mutated" {
		t.Error("Fallback plan shares state between callers")
	}
}

func TestFallbackReply_PerLanguage(t *testing.T) {
	if FallbackReply(types.LangRussian) == FallbackReply(types.LangEnglish) {
		t.Error("Expected localized replies to differ")
	}
	if FallbackReply(types.Language("xx")) != FallbackReply(types.LangUzbek) {
		t.Error("Expected Uzbek default for unknown language")
	}
}

func TestFallbackService(t *testing.T) {
	f := &Fallback{}
	ctx := context.Background()

	plan := f.GeneratePlan(ctx, "any goal", types.LangEnglish, 7, types.IntensityHard)
	if len(plan) != 3 {
		t.Errorf("Expected built-in plan, got %d days", len(plan))
	}

	reply := f.Chat(ctx, nil, "help", types.LangEnglish)
	if reply != FallbackReply(types.LangEnglish) {
		t.Errorf("Expected built-in reply, got %q", reply)
	}
}
