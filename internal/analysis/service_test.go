package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"litlens/internal/apperr"
	"litlens/internal/cache"
	"litlens/internal/llm"
)

// brokenStore simulates a cache backend whose transport is down.
type brokenStore struct{}

var errCacheDown = errors.New("connection refused")

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (brokenStore) Delete(context.Context, string) error { return errCacheDown }
func (brokenStore) Exists(context.Context, string) (bool, error) {
	return false, errCacheDown
}

type mockTextFetcher struct {
	text  string
	err   error
	calls int32
}

func (m *mockTextFetcher) FetchText(ctx context.Context, bookID string) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type mockLLMClient struct {
	content     string
	err         error
	delay       time.Duration
	calls       int32
	lastRequest *llm.ChatRequest
}

func (m *mockLLMClient) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	atomic.AddInt32(&m.calls, 1)
	m.lastRequest = req
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{
		Choices: []llm.ChatChoice{
			{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: m.content}},
		},
	}, nil
}

func newTestService(t *testing.T, texts TextFetcher, model llm.Client) (*Service, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	svc := NewService(
		ServiceConfig{Model: "gpt-4o-mini", Temperature: 0.7},
		cache.NewSafeCache(store, time.Minute),
		texts,
		model,
	)
	return svc, store
}

func TestGetAnalysisComputesAndCaches(t *testing.T) {
	texts := &mockTextFetcher{text: "It is a truth universally acknowledged"}
	model := &mockLLMClient{content: `{"title":"Pride and Prejudice","author":"Jane Austen","themes":["pride"]}`}
	svc, store := newTestService(t, texts, model)
	ctx := context.Background()

	result, err := svc.GetAnalysis(ctx, "1342")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if result.BookID != "1342" {
		t.Errorf("bookId = %q", result.BookID)
	}
	if result.Title != "Pride and Prejudice" || result.Author != "Jane Austen" {
		t.Errorf("title/author = %q/%q", result.Title, result.Author)
	}
	if result.Analysis.WordCount != 6 {
		t.Errorf("wordCount = %d, want 6 (computed from source text)", result.Analysis.WordCount)
	}
	if result.Timestamp == "" {
		t.Errorf("timestamp missing")
	}
	if _, err := time.Parse(time.RFC3339, result.Timestamp); err != nil {
		t.Errorf("timestamp not RFC 3339: %q", result.Timestamp)
	}

	if _, hit, _ := store.Get(ctx, cache.AnalysisKey("1342")); !hit {
		t.Fatalf("expected analysis cached")
	}
}

func TestGetAnalysisIdempotent(t *testing.T) {
	texts := &mockTextFetcher{text: "some text"}
	model := &mockLLMClient{content: `{"title":"T","themes":["a"]}`}
	svc, _ := newTestService(t, texts, model)
	ctx := context.Background()

	first, err := svc.GetAnalysis(ctx, "1342")
	if err != nil {
		t.Fatalf("first GetAnalysis: %v", err)
	}
	second, err := svc.GetAnalysis(ctx, "1342")
	if err != nil {
		t.Fatalf("second GetAnalysis: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("cached result differs:\n%s\n%s", a, b)
	}
	if second.Timestamp != first.Timestamp {
		t.Fatalf("timestamp must be fixed at first write")
	}

	if n := atomic.LoadInt32(&model.calls); n != 1 {
		t.Fatalf("expected 1 model call, got %d", n)
	}
	if n := atomic.LoadInt32(&texts.calls); n != 1 {
		t.Fatalf("expected 1 text fetch, got %d", n)
	}
}

func TestGetAnalysisEmptyID(t *testing.T) {
	svc, _ := newTestService(t, &mockTextFetcher{}, &mockLLMClient{})

	_, err := svc.GetAnalysis(context.Background(), "   ")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetAnalysisPropagatesFetchError(t *testing.T) {
	texts := &mockTextFetcher{err: apperr.NotFound("Book with ID 1342 not found")}
	model := &mockLLMClient{content: "{}"}
	svc, _ := newTestService(t, texts, model)

	_, err := svc.GetAnalysis(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("fetch errors must propagate unwrapped, got %v", err)
	}
	if n := atomic.LoadInt32(&model.calls); n != 0 {
		t.Fatalf("model must not be called after fetch failure")
	}
}

func TestGetAnalysisPropagatesUnparsable(t *testing.T) {
	texts := &mockTextFetcher{text: "some text"}
	model := &mockLLMClient{content: "I could not produce JSON, sorry."}
	svc, store := newTestService(t, texts, model)
	ctx := context.Background()

	_, err := svc.GetAnalysis(ctx, "1342")
	if !apperr.IsKind(err, apperr.KindUnparsableResponse) {
		t.Fatalf("expected unparsable-response error, got %v", err)
	}
	if _, hit, _ := store.Get(ctx, cache.AnalysisKey("1342")); hit {
		t.Fatalf("failed analysis must not be cached")
	}
}

func TestGetAnalysisSurvivesBrokenCache(t *testing.T) {
	texts := &mockTextFetcher{text: "words here"}
	model := &mockLLMClient{content: `{"themes":["x"]}`}

	svc := NewService(
		ServiceConfig{Model: "m", Temperature: 0.5},
		cache.NewSafeCache(brokenStore{}, time.Minute),
		texts,
		model,
	)

	result, err := svc.GetAnalysis(context.Background(), "1342")
	if err != nil {
		t.Fatalf("cache failures must not fail the request: %v", err)
	}
	if len(result.Analysis.Themes) != 1 {
		t.Fatalf("unexpected analysis %+v", result.Analysis)
	}
}

func TestGetAnalysisRecoversFromCorruptedEntry(t *testing.T) {
	texts := &mockTextFetcher{text: "words"}
	model := &mockLLMClient{content: `{"themes":["y"]}`}
	svc, store := newTestService(t, texts, model)
	ctx := context.Background()

	if err := store.Set(ctx, cache.AnalysisKey("1342"), []byte("not json"), 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	result, err := svc.GetAnalysis(ctx, "1342")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if len(result.Analysis.Themes) != 1 {
		t.Fatalf("expected recomputed analysis, got %+v", result.Analysis)
	}
}

func TestGetAnalysisSingleFlight(t *testing.T) {
	texts := &mockTextFetcher{text: "shared text"}
	model := &mockLLMClient{
		content: `{"themes":["z"]}`,
		delay:   50 * time.Millisecond,
	}
	svc, _ := newTestService(t, texts, model)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetAnalysis(ctx, "1342")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent GetAnalysis: %v", err)
		}
	}
	if n := atomic.LoadInt32(&model.calls); n != 1 {
		t.Fatalf("expected concurrent requests collapsed into 1 model call, got %d", n)
	}
}

func TestChat(t *testing.T) {
	texts := &mockTextFetcher{text: "text"}
	model := &mockLLMClient{content: `{"title":"Moby-Dick","author":"Herman Melville","themes":["obsession"],"plot_summary":"A whale hunt."}`}
	svc, _ := newTestService(t, texts, model)
	ctx := context.Background()

	if _, err := svc.GetAnalysis(ctx, "2701"); err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}

	model.content = "Ahab is consumed by revenge."
	reply, err := svc.Chat(ctx, "2701", "What drives Ahab?", []llm.ChatMessage{
		{Role: llm.RoleUser, Content: "Hi"},
		{Role: llm.RoleAssistant, Content: "Hello! Ask me about the book."},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "Ahab is consumed by revenge." {
		t.Fatalf("reply = %q", reply)
	}

	req := model.lastRequest
	if req == nil || len(req.Messages) != 4 {
		t.Fatalf("expected system + 2 history + user messages, got %+v", req)
	}
	if req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("first message must be the system prompt")
	}
	if req.Messages[3].Content != "What drives Ahab?" {
		t.Fatalf("last message = %+v", req.Messages[3])
	}
}

func TestChatEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t, &mockTextFetcher{text: "t"}, &mockLLMClient{content: "{}"})

	_, err := svc.Chat(context.Background(), "1342", "  ", nil)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusAndClear(t *testing.T) {
	texts := &mockTextFetcher{text: "text"}
	model := &mockLLMClient{content: "{}"}
	svc, store := newTestService(t, texts, model)
	ctx := context.Background()

	status, err := svc.Status(ctx, "1342")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.BookTextCached || status.AnalysisCached {
		t.Fatalf("expected cold cache, got %+v", status)
	}

	if err := store.Set(ctx, cache.TextKey("1342"), []byte("text"), time.Minute); err != nil {
		t.Fatalf("seed text: %v", err)
	}
	if _, err := svc.GetAnalysis(ctx, "1342"); err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}

	status, err = svc.Status(ctx, "1342")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.BookTextCached || !status.AnalysisCached {
		t.Fatalf("expected warm cache, got %+v", status)
	}

	if err := svc.Clear(ctx, "1342"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	status, _ = svc.Status(ctx, "1342")
	if status.BookTextCached || status.AnalysisCached {
		t.Fatalf("expected cleared cache, got %+v", status)
	}

	if err := svc.Clear(ctx, ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty ID, got %v", err)
	}
}
