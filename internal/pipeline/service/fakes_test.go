package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/classifier"
	"signal-trackers/internal/pipeline/dto"
	"signal-trackers/internal/pipeline/repository"
	"signal-trackers/internal/pipeline/series"
	"signal-trackers/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "json")
	require.NoError(t, err)
	return log
}

// fakeStore serves canned snapshots. SnapshotAsOf returns the one-day-ago
// view on the first call and the seven-day-ago view afterwards, matching
// the order the alert service requests them in.
type fakeStore struct {
	snapshot    dto.Snapshot
	oneDayAgo   dto.Snapshot
	sevenDayAgo dto.Snapshot
	history     map[string][]series.Sample
	asOfCalls   int
}

func (f *fakeStore) Latest(_ context.Context, key string) (series.Sample, bool, error) {
	sample, ok := series.Latest(f.history[key])
	return sample, ok, nil
}

func (f *fakeStore) History(_ context.Context, key string, _ time.Time) ([]series.Sample, error) {
	return f.history[key], nil
}

func (f *fakeStore) Change(_ context.Context, key string, n int) (dto.Change, error) {
	abs, rel, ok := series.Change(f.history[key], n)
	return dto.Change{Absolute: abs, Relative: rel, Valid: ok}, nil
}

func (f *fakeStore) Percentile(_ context.Context, key string) (float64, bool, error) {
	p, ok := series.Percentile(f.history[key])
	return p, ok, nil
}

func (f *fakeStore) Snapshot(context.Context) (dto.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeStore) SnapshotAsOf(context.Context, time.Time) (dto.Snapshot, error) {
	f.asOfCalls++
	if f.asOfCalls == 1 {
		return f.oneDayAgo, nil
	}
	return f.sevenDayAgo, nil
}

func (f *fakeStore) ClassifierHistory(_ context.Context, keys []string, _ time.Time) (map[string][]series.Sample, error) {
	out := make(map[string][]series.Sample, len(keys))
	for _, key := range keys {
		if samples, ok := f.history[key]; ok {
			out[key] = samples
		}
	}
	return out, nil
}

type fakeRegimeService struct {
	latest *entity.RegimeRecord
}

func (f *fakeRegimeService) Update(context.Context) (*entity.RegimeRecord, error) {
	return f.latest, nil
}

func (f *fakeRegimeService) Latest(context.Context) (*entity.RegimeRecord, error) {
	return f.latest, nil
}

func (f *fakeRegimeService) ConfidenceTrend(context.Context) (string, error) {
	return classifier.TrendStable, nil
}

type fakeSummaryService struct {
	summary *entity.AISummary
}

func (f *fakeSummaryService) GenerateDaily(context.Context) (*entity.AISummary, error) {
	return f.summary, nil
}

func (f *fakeSummaryService) GetForDate(context.Context, time.Time) (*entity.AISummary, error) {
	return f.summary, nil
}

type fakeUserRepo struct {
	users     []entity.User
	sentDates map[uint]time.Time
}

func (f *fakeUserRepo) GetActiveWithPreferences(context.Context) ([]entity.User, error) {
	return f.users, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uint) (*entity.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, gormNotFound{}
}

func (f *fakeUserRepo) SetLastBriefingSentDate(_ context.Context, userID uint, date time.Time) error {
	if f.sentDates == nil {
		f.sentDates = make(map[uint]time.Time)
	}
	f.sentDates[userID] = date
	for i := range f.users {
		if f.users[i].ID == userID && f.users[i].AlertPreference != nil {
			d := date
			f.users[i].AlertPreference.LastBriefingSentDate = &d
		}
	}
	return nil
}

type gormNotFound struct{}

func (gormNotFound) Error() string { return "record not found" }

type fakeAlertRepo struct {
	created  [][]*entity.Alert
	existing map[string]bool
	unsent   []entity.Alert
	recent   []entity.Alert
	marked   []uint
}

func alertKey(userID uint, alertType string) string {
	return fmt.Sprintf("%d/%s", userID, alertType)
}

func (f *fakeAlertRepo) CreateBatch(_ context.Context, alerts []*entity.Alert) error {
	f.created = append(f.created, alerts)
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	for _, a := range alerts {
		f.existing[alertKey(a.UserID, a.AlertType)] = true
	}
	return nil
}

func (f *fakeAlertRepo) ExistsWithin(_ context.Context, userID uint, alertType string, _ time.Time) (bool, error) {
	return f.existing[alertKey(userID, alertType)], nil
}

func (f *fakeAlertRepo) GetUnsent(context.Context) ([]entity.Alert, error) {
	return f.unsent, nil
}

func (f *fakeAlertRepo) MarkSent(_ context.Context, ids []uint, _ time.Time) error {
	f.marked = append(f.marked, ids...)
	return nil
}

func (f *fakeAlertRepo) GetRecentForUser(context.Context, uint, time.Time) ([]entity.Alert, error) {
	return f.recent, nil
}

type fakePortfolioRepo struct {
	allocation *entity.PortfolioAllocation
}

func (f *fakePortfolioRepo) GetByRegime(context.Context, string) (*entity.PortfolioAllocation, error) {
	return f.allocation, nil
}

type fakeKalshiRepo struct {
	market *repository.RecessionMarket
}

func (f *fakeKalshiRepo) GetRecessionMarket(context.Context) (*repository.RecessionMarket, error) {
	if f.market == nil {
		return nil, repository.ErrUnreachable
	}
	return f.market, nil
}

type fakeSender struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (f *fakeSender) Send(to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) SendMessage(text string) error {
	f.messages = append(f.messages, text)
	return nil
}

// fakeModel pops scripted responses in order.
type fakeModel struct {
	responses []*dto.ChatResponse
	errs      []error
	calls     [][]dto.ChatMessage
}

func (f *fakeModel) Chat(_ context.Context, _ string, messages []dto.ChatMessage, _ []dto.ToolDefinition, _ int) (*dto.ChatResponse, error) {
	idx := len(f.calls)
	msgs := make([]dto.ChatMessage, len(messages))
	copy(msgs, messages)
	f.calls = append(f.calls, msgs)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx >= len(f.responses) {
		return &dto.ChatResponse{}, nil
	}
	return f.responses[idx], nil
}

func (f *fakeModel) Provider() string { return "fake" }
func (f *fakeModel) Model() string    { return "fake-model" }

type fakeSearch struct {
	result  *dto.SearchResult
	err     error
	queries []dto.SearchQuery
}

func (f *fakeSearch) Search(_ context.Context, query dto.SearchQuery) (*dto.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSummaryRepo struct {
	upserted []*entity.AISummary
	recent   []entity.AISummary
	byDate   map[string]*entity.AISummary
}

func (f *fakeSummaryRepo) Upsert(_ context.Context, summary *entity.AISummary) error {
	f.upserted = append(f.upserted, summary)
	if f.byDate == nil {
		f.byDate = make(map[string]*entity.AISummary)
	}
	f.byDate[summary.Date.Format("2006-01-02")] = summary
	return nil
}

func (f *fakeSummaryRepo) GetByDate(_ context.Context, date time.Time) (*entity.AISummary, error) {
	return f.byDate[date.Format("2006-01-02")], nil
}

func (f *fakeSummaryRepo) GetRecent(context.Context, int) ([]entity.AISummary, error) {
	return f.recent, nil
}

func (f *fakeSummaryRepo) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}
