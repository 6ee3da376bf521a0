package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/models"
	"github.com/korjavin/newsdigestbot/pipeline"
	"github.com/korjavin/newsdigestbot/publisher"
	"github.com/korjavin/newsdigestbot/scoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	got extractor.Input
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, in extractor.Input) (*extractor.Extraction, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &extractor.Extraction{Items: []models.ContentItem{{Category: models.CategoryNews, Title: "A"}}}, nil
}

type fakeRunner struct {
	req  pipeline.Request
	mode pipeline.Mode
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Report, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Report{Items: []models.ContentItem{{Title: "A"}}, Publish: &publisher.BulkReport{Results: []publisher.Result{{Title: "A", MessageID: "1.000001"}}}}, nil
}

func (f *fakeRunner) Publish(ctx context.Context, items []models.ContentItem, channelID string, mode pipeline.Mode) publisher.BulkReport {
	f.mode = mode
	var r publisher.BulkReport
	for i, it := range items {
		r.Results = append(r.Results, publisher.Result{Index: i, Title: it.Title})
	}
	return r
}

type fakeRecorder struct {
	seen    map[string]bool
	correct string
}

func (f *fakeRecorder) Record(ctx context.Context, ev models.AnswerEvent, correct string) (bool, error) {
	k := fmt.Sprintf("%s|%s|%d", ev.UserID, ev.QuizMessageID, ev.QuestionIndex)
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	f.correct = correct
	return true, nil
}

type memPosts map[string]models.PostRecord

func (m memPosts) SavePost(ctx context.Context, p models.PostRecord) error {
	m[p.MessageID] = p
	return nil
}

func (m memPosts) GetPost(ctx context.Context, id string) (*models.PostRecord, error) {
	p, ok := m[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

type fakeReports struct{ week *scoring.Week }

func (f *fakeReports) Location() *time.Location { return time.UTC }

func (f *fakeReports) Scores(ctx context.Context, week *scoring.Week) ([]models.UserScore, error) {
	f.week = week
	return []models.UserScore{{UserID: "1", DisplayName: "ann", Score: 3}, {UserID: "2", DisplayName: "bob", Score: 1}}, nil
}

func (f *fakeReports) QuestionStats(ctx context.Context, week *scoring.Week, order scoring.Order) ([]models.QuestionStat, error) {
	return nil, nil
}

func (f *fakeReports) PronunciationScores(ctx context.Context) ([]models.UserPronunciationScore, error) {
	return []models.UserPronunciationScore{{UserID: "1", BestScore: 90}}, nil
}

func (f *fakeReports) Weeks(ctx context.Context) ([]scoring.Week, error) {
	w, _ := scoring.ParseWeek("2025-03-05", time.UTC)
	return []scoring.Week{w}, nil
}

type fixture struct {
	router  *gin.Engine
	ext     *fakeExtractor
	runner  *fakeRunner
	rec     *fakeRecorder
	reports *fakeReports
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	f := &fixture{
		ext:     &fakeExtractor{},
		runner:  &fakeRunner{},
		rec:     &fakeRecorder{seen: map[string]bool{}},
		reports: &fakeReports{},
	}
	posts := memPosts{"1741082400.000042": {
		MessageID: "1741082400.000042",
		Questions: []models.QuizQuestion{{Prompt: "Capital?", Options: []string{"Rome", "Paris"}, Correct: "Paris"}},
	}}
	h := NewHandler(Deps{
		Extractor: f.ext,
		Pipeline:  f.runner,
		Recorder:  f.rec,
		Posts:     posts,
		Reports:   f.reports,
	}, Config{DefaultChannel: "@news", Token: token}, logger.Nop())
	f.router = NewRouter(h, logger.Nop())
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "secret")
	w := f.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("healthz = %d, request id %q", w.Code, w.Header().Get(requestIDHeader))
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "secret")
	if w := f.do(t, http.MethodGet, "/api/v1/reports/weeks", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("without token = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/reports/weeks", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Fatalf("with token = %d", w.Code)
	}
}

func TestExtract(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/v1/extract", ExtractRequest{Text: "hello", URLs: []string{"https://a.test"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if f.ext.got.Text != "hello" || len(f.ext.got.URLs) != 1 {
		t.Fatalf("input = %+v", f.ext.got)
	}
	var resp ExtractResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.Images == nil {
		t.Fatalf("response = %+v", resp)
	}

	f.ext.err = extractor.ErrNoContent
	if w := f.do(t, http.MethodPost, "/api/v1/extract", ExtractRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("no content = %d", w.Code)
	}
	f.ext.err = fmt.Errorf("%w after 30s", extractor.ErrGenerationTimeout)
	if w := f.do(t, http.MethodPost, "/api/v1/extract", ExtractRequest{Text: "x"}); w.Code != http.StatusGatewayTimeout {
		t.Fatalf("timeout = %d", w.Code)
	}
}

func TestIngest(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/v1/ingest", IngestRequest{ExtractRequest: ExtractRequest{Text: "news"}, Mode: "all"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if f.runner.req.Mode != pipeline.ModeAll || f.runner.req.ChannelID != "@news" || f.runner.req.Input.Text != "news" {
		t.Fatalf("request = %+v", f.runner.req)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/ingest", IngestRequest{Mode: "sideways"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad mode = %d", w.Code)
	}
}

func TestPublish(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/v1/publish", PublishRequest{Items: []models.ContentItem{{Title: "A"}, {Title: "B"}}, Mode: "extracted-only"})
	if w.Code != http.StatusOK || f.runner.mode != pipeline.ModeExtractedOnly {
		t.Fatalf("status = %d mode = %s", w.Code, f.runner.mode)
	}
	var resp IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Publish == nil || len(resp.Publish.Results) != 2 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSubmitAnswer(t *testing.T) {
	f := newFixture(t, "")
	ans := AnswerRequest{UserID: "7", QuizMessageID: "1741082400.000042", QuestionIndex: 0, SelectedOption: "Paris"}

	w := f.do(t, http.MethodPost, "/api/v1/answers", ans)
	var resp AnswerResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || !resp.Accepted || !resp.Correct || f.rec.correct != "Paris" {
		t.Fatalf("first answer = %d %+v correct=%q", w.Code, resp, f.rec.correct)
	}

	ans.SelectedOption = "Rome"
	w = f.do(t, http.MethodPost, "/api/v1/answers", ans)
	resp = AnswerResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || resp.Accepted {
		t.Fatalf("duplicate answer = %d %+v", w.Code, resp)
	}

	ans.QuizMessageID = "1.000001"
	if w := f.do(t, http.MethodPost, "/api/v1/answers", ans); w.Code != http.StatusNotFound {
		t.Fatalf("unknown quiz = %d", w.Code)
	}
	ans.CorrectAnswer = "Rome"
	if w := f.do(t, http.MethodPost, "/api/v1/answers", ans); w.Code != http.StatusOK {
		t.Fatalf("explicit correct answer = %d", w.Code)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/api/v1/reports/scores?week=2025-03-05", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ReportResponse[ScoreDTO]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Week == nil || resp.Week.Key != "2025-03-02" {
		t.Fatalf("week = %+v", resp.Week)
	}
	if len(resp.Rows) != 2 || resp.Rows[0].Rank != 1 || resp.Rows[1].DisplayName != "bob" || resp.Rows[1].Rank != 2 {
		t.Fatalf("rows = %+v", resp.Rows)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/reports/scores?week=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad week = %d", w.Code)
	}

	f.do(t, http.MethodGet, "/api/v1/reports/scores", nil)
	if f.reports.week != nil {
		t.Fatal("no week param must mean all time")
	}

	w = f.do(t, http.MethodGet, "/api/v1/reports/questions?week=current&order=easiest", nil)
	var qs ReportResponse[QuestionStatDTO]
	if err := json.Unmarshal(w.Body.Bytes(), &qs); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || qs.Rows == nil || qs.Week == nil {
		t.Fatalf("questions = %d %+v", w.Code, qs)
	}

	w = f.do(t, http.MethodGet, "/api/v1/reports/pronunciation", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"bestScore":90`)) {
		t.Fatalf("pronunciation = %d %s", w.Code, w.Body)
	}
}
