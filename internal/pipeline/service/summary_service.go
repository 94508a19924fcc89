package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/pkg/logger"
	"signal-trackers/pkg/utils"
)

const (
	summaryRetentionDays = 90
	maxToolIterations    = 3
	priorNarrativeCount  = 3
	newsContextSnippet   = 500
)

// ErrEmptyNarrative is returned when the model yields no content within the
// iteration budget.
var ErrEmptyNarrative = errors.New("empty response")

var searchWebTool = dto.ToolDefinition{
	Name:        "search_web",
	Description: "Search the web for recent news and context. Use financial_news for market-moving headlines.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query"},
			"search_type": {"type": "string", "enum": ["general", "financial_news"]}
		},
		"required": ["query"]
	}`),
}

const summarySystemPrompt = `You are a macro-market analyst writing a short daily briefing.
Write exactly two short paragraphs: the first on what moved and why, the second on what to watch.
Be concrete, cite indicator values from the digest, and avoid repeating recent days' framing.
You may call search_web once for fresh context before writing.`

// SummaryService produces the shared daily narrative.
type SummaryService interface {
	GenerateDaily(ctx context.Context) (*entity.AISummary, error)
	GetForDate(ctx context.Context, date time.Time) (*entity.AISummary, error)
}

type summaryService struct {
	store       StoreService
	regime      RegimeService
	summaryRepo repository.AISummaryRepository
	model       repository.ModelClient
	search      repository.SearchRepository
	logger      *logger.Logger
	maxTokens   int
	now         func() time.Time
}

// NewSummaryService creates a new SummaryService.
func NewSummaryService(
	store StoreService,
	regime RegimeService,
	summaryRepo repository.AISummaryRepository,
	model repository.ModelClient,
	search repository.SearchRepository,
	maxTokens int,
	log *logger.Logger,
) SummaryService {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &summaryService{
		store:       store,
		regime:      regime,
		summaryRepo: summaryRepo,
		model:       model,
		search:      search,
		logger:      log,
		maxTokens:   maxTokens,
		now:         time.Now,
	}
}

// GenerateDaily builds the digest, runs the bounded tool-call loop, and
// upserts today's narrative. A rerun for the same date replaces the prior
// record.
func (s *summaryService) GenerateDaily(ctx context.Context) (*entity.AISummary, error) {
	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	regime, err := s.regime.Latest(ctx)
	if err != nil {
		return nil, err
	}
	priors, err := s.summaryRepo.GetRecent(ctx, priorNarrativeCount)
	if err != nil {
		return nil, err
	}

	digest := buildDigest(snapshot, regime, priors)
	outcome, err := s.callModelWithTools(ctx, summarySystemPrompt, digest)
	if err != nil {
		return nil, err
	}

	summary := &entity.AISummary{
		Date:        utils.DateOnly(s.now().UTC()),
		Summary:     outcome.content,
		Provider:    s.model.Provider(),
		Model:       s.model.Model(),
		Iterations:  outcome.iterations,
		UsedSearch:  outcome.usedSearch,
		NewsContext: outcome.newsContext,
	}
	if err := s.summaryRepo.Upsert(ctx, summary); err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().AddDate(0, 0, -summaryRetentionDays)
	if _, err := s.summaryRepo.PruneOlderThan(ctx, cutoff); err != nil {
		s.logger.ErrorContext(ctx, "Failed to prune summary history", logger.ErrorField(err))
	}

	s.logger.Info("Daily narrative generated",
		logger.IntField("iterations", outcome.iterations),
		logger.Field("used_search", outcome.usedSearch))
	return summary, nil
}

func (s *summaryService) GetForDate(ctx context.Context, date time.Time) (*entity.AISummary, error) {
	return s.summaryRepo.GetByDate(ctx, utils.DateOnly(date))
}

type loopOutcome struct {
	content     string
	iterations  int
	usedSearch  bool
	newsContext string
}

// callModelWithTools runs the bounded tool-calling loop: at most three model
// calls, each tool request answered inline. Search failures are fed back to
// the model as tool content rather than aborting the loop.
func (s *summaryService) callModelWithTools(ctx context.Context, system, user string) (*loopOutcome, error) {
	messages := []dto.ChatMessage{{Role: dto.RoleUser, Content: user}}
	outcome := &loopOutcome{}

	for iteration := 1; iteration <= maxToolIterations; iteration++ {
		outcome.iterations = iteration
		resp, err := s.model.Chat(ctx, system, messages, []dto.ToolDefinition{searchWebTool}, s.maxTokens)
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			content := strings.TrimSpace(resp.Content)
			if content == "" {
				return nil, ErrEmptyNarrative
			}
			outcome.content = content
			return outcome, nil
		}

		messages = append(messages, dto.ChatMessage{
			Role:      dto.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := s.executeTool(ctx, call, outcome)
			messages = append(messages, dto.ChatMessage{
				Role:       dto.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return nil, ErrEmptyNarrative
}

func (s *summaryService) executeTool(ctx context.Context, call dto.ToolCall, outcome *loopOutcome) string {
	if call.Name != searchWebTool.Name {
		return fmt.Sprintf("unknown tool %q", call.Name)
	}

	var args dto.SearchWebArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return fmt.Sprintf("invalid search_web arguments: %v", err)
	}
	outcome.usedSearch = true

	query := dto.SearchQuery{
		Query:      args.Query,
		Depth:      dto.SearchDepthBasic,
		MaxResults: 5,
	}
	if args.SearchType == dto.SearchTypeFinancialNews {
		query.Depth = dto.SearchDepthAdvanced
		query.IncludeDomains = repository.FinancialNewsDomains()
	}

	result, err := s.search.Search(ctx, query)
	if err != nil {
		s.logger.WarnContext(ctx, "Web search failed inside tool loop", logger.ErrorField(err))
		return fmt.Sprintf("search failed: %v", err)
	}

	text := formatSearchResult(result)
	if snippet := strings.TrimSpace(text); snippet != "" {
		if len(snippet) > newsContextSnippet {
			snippet = snippet[:newsContextSnippet]
		}
		outcome.newsContext = snippet
	}
	return text
}

func formatSearchResult(result *dto.SearchResult) string {
	var sb strings.Builder
	if result.Answer != "" {
		sb.WriteString(result.Answer)
		sb.WriteString("\n\n")
	}
	for _, item := range result.Results {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", item.Title, item.Content))
	}
	if sb.Len() == 0 {
		return "no results"
	}
	return sb.String()
}

// buildDigest renders a deterministic markdown digest of the snapshot for
// the model. Indicators are grouped by category and sorted by key so the
// prompt is stable across runs.
func buildDigest(snapshot dto.Snapshot, regime *entity.RegimeRecord, priors []entity.AISummary) string {
	var sb strings.Builder
	sb.WriteString("# Market digest\n\n")

	if regime != nil {
		sb.WriteString(fmt.Sprintf("Current regime: %s (confidence %s, stress %.2f)\n\n", regime.Regime, regime.Confidence, regime.StressScore))
	}

	byCategory := make(map[string][]dto.Metric)
	for _, metric := range snapshot {
		byCategory[metric.Category] = append(byCategory[metric.Category], metric)
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		metrics := byCategory[category]
		sort.Slice(metrics, func(i, j int) bool { return metrics[i].Key < metrics[j].Key })
		sb.WriteString(fmt.Sprintf("## %s\n", category))
		for _, m := range metrics {
			line := fmt.Sprintf("- %s: %.2f", m.DisplayName, m.Value)
			if change, ok := m.Changes[5]; ok && change.Valid {
				line += fmt.Sprintf(" (5d %+.2f)", change.Absolute)
			}
			if m.PercentileValid {
				line += fmt.Sprintf(" [pctile %.0f]", m.Percentile*100)
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	if len(priors) > 0 {
		sb.WriteString("## Recent narratives (avoid repeating)\n")
		for _, prior := range priors {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", prior.Date.Format("2006-01-02"), firstSentence(prior.Summary)))
		}
	}
	return sb.String()
}

func firstSentence(text string) string {
	if idx := strings.IndexAny(text, ".!?"); idx > 0 && idx < len(text)-1 {
		return text[:idx+1]
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
