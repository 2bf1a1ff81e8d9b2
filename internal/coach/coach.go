// Package coach generates discipline plans and chat replies for the AI
// coach. Upstream failure never reaches callers: every operation degrades
// to a built-in localized fallback.
package coach

import (
	"context"

	"github.com/hyperengineering/cadence/internal/types"
)

// DefaultPlanDays is used when a request does not specify a horizon.
const DefaultPlanDays = 7

// Service generates plans and coach replies. Implementations must not
// return upstream errors; they degrade to fallback content instead.
type Service interface {
	GeneratePlan(ctx context.Context, goal string, lang types.Language, days int, intensity types.PlanIntensity) []types.DailyPlan
	Chat(ctx context.Context, history []types.ChatMessage, message string, lang types.Language) string
}

// New returns the OpenAI-backed service, or the fallback-only service when
// no API key is configured.
func New(apiKey, model string) Service {
	if apiKey == "" {
		return &Fallback{}
	}
	return NewOpenAI(apiKey, model)
}

// fallbackPlans are served when the upstream generator is unavailable.
var fallbackPlans = map[types.Language][]types.DailyPlan{
	types.LangUzbek: {
		{Day: 1, Focus: "Asoslarni o'rnatish", Tasks: []string{"Maqsadni aniqlash", "Resurslarni yig'ish", "30 daqiqa o'rganish"}},
		{Day: 2, Focus: "Amaliyot", Tasks: []string{"Birinchi qadam", "20 daqiqa amaliyot", "Xatolarni tahlil qilish"}},
		{Day: 3, Focus: "Qiyinchilik", Tasks: []string{"1 soat shug'ullanish", "Chalg'imaslik", "Natijani yozish"}},
	},
	types.LangRussian: {
		{Day: 1, Focus: "Закладка основ", Tasks: []string{"Определить цель", "Собрать ресурсы", "30 минут обучения"}},
		{Day: 2, Focus: "Практика", Tasks: []string{"Первый шаг", "20 минут практики", "Анализ ошибок"}},
		{Day: 3, Focus: "Сложность", Tasks: []string{"Заниматься 1 час", "Не отвлекаться", "Записать результат"}},
	},
	types.LangEnglish: {
		{Day: 1, Focus: "Foundations", Tasks: []string{"Define goal", "Gather resources", "30 mins learning"}},
		{Day: 2, Focus: "Practice", Tasks: []string{"First step", "20 mins practice", "Analyze errors"}},
		{Day: 3, Focus: "Challenge", Tasks: []string{"1 hour focus", "No distractions", "Log results"}},
	},
}

// fallbackReplies are served when the upstream chat model is unavailable.
var fallbackReplies = map[types.Language]string{
	types.LangUzbek:   "Server bilan aloqa yo'q. Lekin to'xtamang!",
	types.LangRussian: "Нет связи с сервером. Но не останавливайтесь!",
	types.LangEnglish: "No connection to server. But don't stop!",
}

// FallbackPlan returns the built-in plan for the given language.
func FallbackPlan(lang types.Language) []types.DailyPlan {
	if plan, ok := fallbackPlans[lang]; ok {
		return clonePlan(plan)
	}
	return clonePlan(fallbackPlans[types.LangUzbek])
}

// FallbackReply returns the built-in apology line for the given language.
func FallbackReply(lang types.Language) string {
	if reply, ok := fallbackReplies[lang]; ok {
		return reply
	}
	return fallbackReplies[types.LangUzbek]
}

// Fallback serves built-in content only. Used when no API key is configured;
// also the degradation target for the OpenAI service.
type Fallback struct{}

// Compile-time interface check
var _ Service = (*Fallback)(nil)

// GeneratePlan returns the built-in plan for the language.
func (f *Fallback) GeneratePlan(_ context.Context, _ string, lang types.Language, _ int, _ types.PlanIntensity) []types.DailyPlan {
	return FallbackPlan(lang)
}

// Chat returns the built-in apology line for the language.
func (f *Fallback) Chat(_ context.Context, _ []types.ChatMessage, _ string, lang types.Language) string {
	return FallbackReply(lang)
}

func clonePlan(plan []types.DailyPlan) []types.DailyPlan {
	out := make([]types.DailyPlan, len(plan))
	for i, day := range plan {
		out[i] = day
		out[i].Tasks = append([]string{}, day.Tasks...)
	}
	return out
}
