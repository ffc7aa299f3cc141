package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/fluentprep/fluentprep/internal/identity"
	"github.com/fluentprep/fluentprep/internal/middleware"
	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/fluentprep/fluentprep/internal/providers"
	"github.com/fluentprep/fluentprep/internal/quota"
	"github.com/fluentprep/fluentprep/internal/usage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-for-jwt-testing"

// stubEngine returns a canned decision and counts recorded calls
type stubEngine struct {
	decision quota.Decision
	recorded int
}

func (s *stubEngine) Check(ctx context.Context, userID string, tier models.PlanTier) quota.Decision {
	return s.decision
}

func (s *stubEngine) RecordCall(ctx context.Context, userID string) {
	s.recorded++
}

type stubChat struct {
	reply string
	err   error
}

func (s stubChat) Generate(ctx context.Context, system string, messages []providers.Message) (string, error) {
	return s.reply, s.err
}

func (s stubChat) Model() string { return "gemini-1.5-flash" }

type stubCompletion struct {
	reply string
	err   error
}

func (s stubCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	return s.reply, s.err
}

func (s stubCompletion) Model() string { return "deepseek-chat" }

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, audioURL string) (*providers.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Transcript{Text: s.text, Confidence: 0.93}, nil
}

type stubTTS struct {
	audio []byte
	err   error
}

func (s stubTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return s.audio, s.err
}

// captureRecorder collects call log entries in memory
type captureRecorder struct {
	entries []*models.CallLog
}

func (r *captureRecorder) Record(_ context.Context, entry *models.CallLog) {
	r.entries = append(r.entries, entry)
}

func (r *captureRecorder) Summarize(_ context.Context, _ string, since time.Time) (*usage.Summary, error) {
	return &usage.Summary{Since: since}, nil
}

type staticPlanSource struct {
	tier models.PlanTier
}

func (s staticPlanSource) PlanTier(_ context.Context, _ string) (models.PlanTier, error) {
	return s.tier, nil
}

func allowAll() quota.Decision {
	return quota.Decision{
		RemainingCalls: 99,
		ResetTime:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		PlanTier:       models.PlanFree,
	}
}

func denyAll(tier models.PlanTier) quota.Decision {
	return quota.Decision{
		RemainingCalls: 0,
		ResetTime:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		IsLimited:      true,
		PlanTier:       tier,
	}
}

func newTestServer(engine QuotaEngine, ai AIProviders, tier models.PlanTier) *APIServer {
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Issuer = "fluentprep"
	cfg.JWT.AccessTokenExpiry = 15 * time.Minute
	cfg.JWT.RefreshTokenExpiry = 7 * 24 * time.Hour
	cfg.Guard.MaxBodyKB = 50

	router := gin.New()
	router.Use(middleware.RequestID())

	srv := &APIServer{
		config:    cfg,
		router:    router,
		resolver:  identity.NewResolver(&cfg.JWT, staticPlanSource{tier: tier}),
		quota:     engine,
		providers: ai,
		usage:     usage.NewRecorder(nil),
	}
	srv.setupRoutes()
	return srv
}

func createTestToken(userID string) string {
	now := time.Now()
	claims := &identity.Claims{
		UserID: userID,
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			Issuer:    "fluentprep",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}

func doJSON(t *testing.T, srv *APIServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(&stubEngine{decision: allowAll()}, AIProviders{}, models.PlanFree)

	w := doJSON(t, srv, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestGuardedEndpoint_RequiresAuth(t *testing.T) {
	srv := newTestServer(&stubEngine{decision: allowAll()}, AIProviders{}, models.PlanFree)

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", "", gin.H{
		"messages": []gin.H{{"role": "user", "content": "hello"}},
	})

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}

	body := parseBody(t, w)
	if body["success"] != false {
		t.Errorf("Expected success=false, got %v", body["success"])
	}
	if body["error"] != "Authentication required. Please log in first." {
		t.Errorf("Unexpected error message: %v", body["error"])
	}
}

func TestGuardedEndpoint_RejectsOversizedBody(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{Chat: stubChat{reply: "ok"}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", token, gin.H{
		"messages": []gin.H{{"role": "user", "content": strings.Repeat("x", 51*1024)}},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	body := parseBody(t, w)
	errMsg, _ := body["error"].(string)
	if !strings.Contains(errMsg, "Request too large. Maximum 50KB allowed") {
		t.Errorf("Unexpected error message: %q", errMsg)
	}
	if engine.recorded != 0 {
		t.Errorf("Expected no recorded calls for rejected request, got %d", engine.recorded)
	}
}

func TestGuardedEndpoint_QuotaExceeded(t *testing.T) {
	engine := &stubEngine{decision: denyAll(models.PlanFree)}
	srv := newTestServer(engine, AIProviders{Chat: stubChat{reply: "ok"}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", token, gin.H{
		"messages": []gin.H{{"role": "user", "content": "hello"}},
	})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}

	body := parseBody(t, w)
	if body["success"] != false {
		t.Errorf("Expected success=false, got %v", body["success"])
	}
	if body["error"] != "You have exceeded your daily API limit." {
		t.Errorf("Unexpected error message: %v", body["error"])
	}
	if body["remaining"] != float64(0) {
		t.Errorf("Expected remaining=0, got %v", body["remaining"])
	}
	if body["resetTime"] != "2026-03-15T00:00:00Z" {
		t.Errorf("Unexpected resetTime: %v", body["resetTime"])
	}
	if body["isPremium"] != false {
		t.Errorf("Expected isPremium=false for free tier, got %v", body["isPremium"])
	}
	if engine.recorded != 0 {
		t.Errorf("Expected no recorded calls for denied request, got %d", engine.recorded)
	}
}

func TestGuardedEndpoint_QuotaExceededPremium(t *testing.T) {
	engine := &stubEngine{decision: denyAll(models.PlanPremium)}
	srv := newTestServer(engine, AIProviders{Chat: stubChat{reply: "ok"}}, models.PlanPremium)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", token, gin.H{
		"messages": []gin.H{{"role": "user", "content": "hello"}},
	})

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", w.Code)
	}

	body := parseBody(t, w)
	if body["isPremium"] != true {
		t.Errorf("Expected isPremium=true for premium tier, got %v", body["isPremium"])
	}
}

func TestConversationTutor_Success(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{Chat: stubChat{reply: "Well done!"}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", token, gin.H{
		"messages": []gin.H{{"role": "user", "content": "I goes to school"}},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	if body["success"] != true {
		t.Errorf("Expected success=true, got %v", body["success"])
	}
	if body["reply"] != "Well done!" {
		t.Errorf("Unexpected reply: %v", body["reply"])
	}
	if engine.recorded != 1 {
		t.Errorf("Expected exactly one recorded call, got %d", engine.recorded)
	}
}

func TestConversationTutor_ProviderFailureNotCounted(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{Chat: stubChat{err: errors.New("upstream exploded")}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/conversation-tutor", token, gin.H{
		"messages": []gin.H{{"role": "user", "content": "hello"}},
	})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}

	body := parseBody(t, w)
	if body["error"] != "upstream exploded" {
		t.Errorf("Expected raw provider error, got %v", body["error"])
	}
	if engine.recorded != 0 {
		t.Errorf("Expected failed call not to be counted, got %d recorded", engine.recorded)
	}
}

func TestTranslate_Success(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{Completion: stubCompletion{reply: "Bonjour"}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/translate", token, gin.H{
		"text":            "Hello",
		"target_language": "French",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	if body["translation"] != "Bonjour" {
		t.Errorf("Unexpected translation: %v", body["translation"])
	}
	if engine.recorded != 1 {
		t.Errorf("Expected exactly one recorded call, got %d", engine.recorded)
	}
}

func TestPronunciationAnalysis_Success(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{
		Speech: stubTranscriber{text: "the quick brown fox"},
		Chat:   stubChat{reply: `{"accuracy": 88}`},
	}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/pronunciation-analysis", token, gin.H{
		"audio_url":      "https://cdn.example.com/recording.wav",
		"reference_text": "the quick brown fox",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	if body["transcript"] != "the quick brown fox" {
		t.Errorf("Unexpected transcript: %v", body["transcript"])
	}
	if engine.recorded != 1 {
		t.Errorf("Expected exactly one recorded call, got %d", engine.recorded)
	}
}

func TestPronunciationAnalysis_LogsBothProviderLegs(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{
		Speech: stubTranscriber{text: "the quick brown fox"},
		Chat:   stubChat{reply: `{"accuracy": 88}`},
	}, models.PlanFree)
	recorder := &captureRecorder{}
	srv.usage = recorder
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/pronunciation-analysis", token, gin.H{
		"audio_url":      "https://cdn.example.com/recording.wav",
		"reference_text": "the quick brown fox",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Transcription and scoring are separate upstream calls: both must
	// show up in the call log so their costs are counted, while the
	// quota is charged once for the request
	if len(recorder.entries) != 2 {
		t.Fatalf("Expected 2 call log entries, got %d", len(recorder.entries))
	}
	legs := map[string]bool{}
	for _, entry := range recorder.entries {
		legs[entry.Provider] = true
		if entry.Endpoint != "pronunciation-analysis" {
			t.Errorf("Unexpected endpoint %q", entry.Endpoint)
		}
	}
	if !legs["assemblyai"] || !legs["gemini"] {
		t.Errorf("Expected assemblyai and gemini legs, got %v", legs)
	}
	if engine.recorded != 1 {
		t.Errorf("Expected exactly one recorded call, got %d", engine.recorded)
	}
}

func TestTextToSpeech_Success(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{TTS: stubTTS{audio: []byte("mp3-bytes")}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/tts", token, gin.H{
		"text": "Read this aloud",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	// []byte marshals to base64 in JSON
	if body["audioContent"] != "bXAzLWJ5dGVz" {
		t.Errorf("Unexpected audio content: %v", body["audioContent"])
	}
	if engine.recorded != 1 {
		t.Errorf("Expected exactly one recorded call, got %d", engine.recorded)
	}
}

func TestPTESpeakingEvaluator_RejectsUnknownTaskType(t *testing.T) {
	engine := &stubEngine{decision: allowAll()}
	srv := newTestServer(engine, AIProviders{Completion: stubCompletion{reply: "ok"}}, models.PlanFree)
	token := createTestToken("user-123")

	w := doJSON(t, srv, "POST", "/api/v1/ai/pte-speaking-evaluator", token, gin.H{
		"transcript": "some answer",
		"task_type":  "interpretive-dance",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if engine.recorded != 0 {
		t.Errorf("Expected no recorded calls for invalid request, got %d", engine.recorded)
	}
}
