package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/service"
)

const testNoteJSON = `{
	"summary": "3日前からの頭痛",
	"patientInfo": {"chiefComplaint": "頭痛", "duration": "3日間"},
	"soap": {
		"subjective": {"presentIllness": "頭痛", "severity": "重度"},
		"objective": {"physicalExam": "神経学的異常なし"},
		"assessment": {"diagnosis": "片頭痛", "icd10": "G43.9", "differentialDiagnosis": ["緊張型頭痛"]},
		"plan": {"treatment": "鎮痛剤", "followUp": "1週間後"}
	}
}`

type fakeConfigManager struct {
	config domain.Config
}

func (f *fakeConfigManager) GetConfig() *domain.Config               { return &f.config }
func (f *fakeConfigManager) GetServerConfig() *domain.ServerConfig   { return &f.config.Server }
func (f *fakeConfigManager) GetLLMConfig() *domain.LLMConfig         { return &f.config.LLM }
func (f *fakeConfigManager) GetStorageConfig() *domain.StorageConfig { return &f.config.Storage }
func (f *fakeConfigManager) Reload() error                           { return nil }
func (f *fakeConfigManager) Validate() error                         { return nil }
func (f *fakeConfigManager) IsProduction() bool                      { return false }
func (f *fakeConfigManager) IsDevelopment() bool                     { return true }

// fakeLLM answers every completion with content, or err when set
type fakeLLM struct {
	content string
	chunks  []string
	err     error
	calls   int
	lastReq domain.CompletionRequest
	mu      sync.Mutex
}

func (f *fakeLLM) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResponse{Content: f.content, PromptTokens: 1000, CompletionTokens: 500}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req domain.CompletionRequest, onDelta func(string) error) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for _, chunk := range f.chunks {
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResponse{Content: strings.Join(f.chunks, ""), PromptTokens: 1000, CompletionTokens: 500}, nil
}

type fakeSpeech struct {
	text, voice string
	err         error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.text, f.voice = text, voice
	if f.err != nil {
		return nil, f.err
	}
	return []byte("ID3-audio"), nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records []domain.UsageRecord
	since   time.Time
}

func (f *fakeLedger) Record(ctx context.Context, rec domain.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) Summary(ctx context.Context, since time.Time) ([]domain.ModelUsageSummary, error) {
	f.since = since
	return []domain.ModelUsageSummary{{Model: domain.DefaultModel, Requests: 2, TotalTokens: 3000}}, nil
}

type fakeChecker struct{ err error }

func (f fakeChecker) Health(ctx context.Context) error { return f.err }

type testEnv struct {
	server *Server
	llm    *fakeLLM
	speech *fakeSpeech
	store  *notestore.SQLiteStore
	ledger *fakeLedger
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := quietLogger()

	llm := &fakeLLM{content: testNoteJSON, chunks: []string{testNoteJSON[:40], testNoteJSON[40:]}}
	analyzer, err := service.NewNoteAnalyzer(service.NoteAnalyzerConfig{MaxCacheItems: 8}, llm, nil, logger)
	require.NoError(t, err)

	store, err := notestore.NewSQLiteStore(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		llm:    llm,
		speech: &fakeSpeech{},
		store:  store,
		ledger: &fakeLedger{},
	}

	cm := &fakeConfigManager{config: domain.Config{
		Server:  domain.ServerConfig{RequestTimeout: 5 * time.Second},
		Logging: domain.LoggingConfig{Level: "error"},
	}}
	env.server = NewServer(cm, Dependencies{
		Analyzer: analyzer,
		Chat:     service.NewChatSupport(llm, logger),
		Speech:   env.speech,
		Store:    store,
		Usage:    env.ledger,
		Checks:   map[string]HealthChecker{"store": fakeChecker{}},
		Logger:   logger,
	})
	gin.SetMode(gin.TestMode)
	return env
}

func (e *testEnv) do(method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["store"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	env.server.deps.Checks["redis"] = fakeChecker{err: errors.New("connection refused")}
	w = env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decodeBody(t, w)["status"])
}

func TestModels(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, domain.DefaultModel, body["default"])
	assert.Len(t, body["models"], len(domain.AvailableModels))
}

func TestAnalyze(t *testing.T) {
	t.Run("Success_Saves_And_Records", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"医師: どうされましたか"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			ID              string                  `json:"id"`
			Note            domain.ClinicalNote     `json:"note"`
			Recommendations []domain.Recommendation `json:"recommendations"`
			Usage           domain.TokenUsage       `json:"usage"`
			Model           string                  `json:"model"`
			Cached          bool                    `json:"cached"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "頭痛", resp.Note.ChiefComplaint())
		assert.Equal(t, domain.DefaultModel, resp.Model)
		assert.False(t, resp.Cached)
		assert.Equal(t, 1500, resp.Usage.TotalTokens)
		require.NotEmpty(t, resp.Recommendations)
		assert.Equal(t, "differential-check", resp.Recommendations[0].ID)

		require.NotEmpty(t, resp.ID)
		rec, err := env.store.Get(context.Background(), resp.ID)
		require.NoError(t, err)
		assert.Equal(t, "医師: どうされましたか", rec.Transcript)

		require.Len(t, env.ledger.records, 1)
		assert.Equal(t, domain.OperationAnalyze, env.ledger.records[0].Operation)
		assert.Equal(t, w.Header().Get("X-Correlation-ID"), env.ledger.records[0].RequestID)
	})

	t.Run("Empty_Text", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.MsgEmptyTranscript, decodeBody(t, w)["error"])
		assert.Equal(t, 0, env.llm.calls)
	})

	t.Run("Invalid_Body", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown_Model", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"x","model":"gpt-3.5"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "model", decodeBody(t, w)["field"])
	})

	t.Run("LLM_Errors", func(t *testing.T) {
		tests := []struct {
			name    string
			err     error
			status  int
			message string
		}{
			{"rate limited", domain.ErrLLMRateLimited, http.StatusTooManyRequests, domain.MsgRateLimited},
			{"bad key", domain.ErrLLMUnauthorized, http.StatusInternalServerError, domain.MsgInvalidAPIKey},
			{"breaker open", domain.ErrLLMUnavailable, http.StatusServiceUnavailable, domain.MsgAnalysisFailed},
			{"other", errors.New("boom"), http.StatusInternalServerError, domain.MsgAnalysisFailed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.llm.err = tt.err

				w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"会話"}`)
				assert.Equal(t, tt.status, w.Code)
				assert.Equal(t, tt.message, decodeBody(t, w)["error"])
				assert.Empty(t, env.ledger.records)
			})
		}
	})

	t.Run("Invalid_Model_Output", func(t *testing.T) {
		env := newTestEnv(t)
		env.llm.content = `{"summary":"no soap"}`

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"会話"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, domain.MsgAnalysisFailed, decodeBody(t, w)["error"])
	})

	t.Run("Not_Configured", func(t *testing.T) {
		cm := &fakeConfigManager{}
		server := NewServer(cm, Dependencies{Logger: quietLogger()})

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"text":"x"}`)))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, domain.ErrCodeConfiguration, decodeBody(t, w)["code"])
	})
}

// sseEvents splits an SSE body into its decoded data payloads
func sseEvents(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), block)
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestAnalyzeStream(t *testing.T) {
	t.Run("Chunks_Then_Done", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"会話","stream":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		events := sseEvents(t, w.Body.String())
		require.Len(t, events, 3)

		var content string
		for _, ev := range events[:2] {
			content += ev["content"].(string)
		}
		assert.JSONEq(t, testNoteJSON, content)

		done := events[2]
		assert.Equal(t, true, done["done"])
		assert.Equal(t, float64(1500), done["usage"].(map[string]interface{})["totalTokens"])
		assert.NotEmpty(t, done["recommendations"])
		assert.NotEmpty(t, done["id"])
	})

	t.Run("Validation_Error_Before_Stream", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"","stream":true}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.MsgEmptyTranscript, decodeBody(t, w)["error"])
	})

	t.Run("Error_After_Chunks", func(t *testing.T) {
		env := newTestEnv(t)
		env.llm.chunks = []string{`{"summary":`}
		env.llm.err = domain.ErrLLMRateLimited

		w := env.do(http.MethodPost, "/api/v1/analyze", `{"text":"会話","stream":true}`)
		require.Equal(t, http.StatusOK, w.Code)

		events := sseEvents(t, w.Body.String())
		require.Len(t, events, 2)
		assert.Equal(t, domain.MsgRateLimited, events[1]["error"])
	})
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/recommendations", testNoteJSON)
	require.Equal(t, http.StatusOK, w.Code)
	recs := decodeBody(t, w)["recommendations"].([]interface{})
	require.Len(t, recs, 3)
	assert.Equal(t, "differential-check", recs[0].(map[string]interface{})["id"])

	w = env.do(http.MethodPost, "/api/v1/recommendations", `{"summary":"no soap"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, w)["recommendations"])

	w = env.do(http.MethodPost, "/api/v1/recommendations", `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatSupport(t *testing.T) {
	env := newTestEnv(t)
	env.llm.content = "注意: 頭部CTを検討してください"

	w := env.do(http.MethodPost, "/api/v1/chat-support", `{"message":"追加検査は？","soapNote":`+testNoteJSON+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "warning", body["type"])
	assert.Equal(t, env.llm.content, body["response"])

	require.Len(t, env.ledger.records, 1)
	assert.Equal(t, domain.OperationChat, env.ledger.records[0].Operation)

	w = env.do(http.MethodPost, "/api/v1/chat-support", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.MsgInvalidMessage, decodeBody(t, w)["error"])

	t.Run("Malformed_History_Entries_Dropped", func(t *testing.T) {
		history := `[
			{"role":"user","content":"前回の質問"},
			{"role":"user","content":123},
			null,
			"text",
			{"role":"assistant"},
			{"role":"assistant","content":"前回の回答"}
		]`
		w := env.do(http.MethodPost, "/api/v1/chat-support", `{"message":"続き","conversationHistory":`+history+`}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		msgs := env.llm.lastReq.Messages
		require.Len(t, msgs, 4)
		assert.Equal(t, domain.ChatMessage{Role: "user", Content: "前回の質問"}, msgs[1])
		assert.Equal(t, domain.ChatMessage{Role: "assistant", Content: "前回の回答"}, msgs[2])
		assert.Equal(t, "続き", msgs[3].Content)
	})

	t.Run("History_Not_A_List_Ignored", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/v1/chat-support", `{"message":"質問","conversationHistory":"none"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, env.llm.lastReq.Messages, 2)
	})
}

func TestDecodeHistory(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"absent", ``, 0},
		{"null", `null`, 0},
		{"object", `{"role":"user","content":"x"}`, 0},
		{"valid", `[{"role":"user","content":"x"},{"role":"assistant","content":""}]`, 2},
		{"null content", `[{"role":"user","content":null}]`, 0},
		{"numeric role", `[{"role":1,"content":"x"}]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, decodeHistory(json.RawMessage(tt.raw)), tt.want)
		})
	}
}

func TestTTS(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/tts", `{"text":"主観的情報: 頭痛","voice":"nova"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID3-audio", w.Body.String())
	assert.Equal(t, "nova", env.speech.voice)

	w = env.do(http.MethodPost, "/api/v1/tts", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.speech.err = errors.New("upstream")
	w = env.do(http.MethodPost, "/api/v1/tts", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, domain.MsgSpeechFailed, decodeBody(t, w)["error"])
}

func TestUsage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/usage?since=2025-01-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), env.ledger.since)
	assert.Len(t, decodeBody(t, w)["models"], 1)

	w = env.do(http.MethodGet, "/api/v1/usage?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2025-03-04T05:06:07Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), got)

	got, err = parseSince("72h")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-72*time.Hour), got, time.Minute)

	_, err = parseSince("-5h")
	assert.Error(t, err)
}

func TestNotesRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var note domain.ClinicalNote
	require.NoError(t, json.Unmarshal([]byte(testNoteJSON), &note))
	rec := &notestore.Record{Note: &note, Model: domain.DefaultModel}
	require.NoError(t, env.store.Save(ctx, rec))

	t.Run("List", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/notes?limit=500", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(1), body["total"])
		assert.Equal(t, float64(maxPageSize), body["limit"])

		w = env.do(http.MethodGet, "/api/v1/notes?offset=-1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/notes/"+rec.ID, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, rec.ID, decodeBody(t, w)["id"])

		w = env.do(http.MethodGet, "/api/v1/notes/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Export_Single", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/notes/"+rec.ID+"/export?format=csv", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "soap_note_")
		assert.Contains(t, w.Body.String(), `"診断名","片頭痛"`)

		w = env.do(http.MethodGet, "/api/v1/notes/"+rec.ID+"/export", "")
		require.Equal(t, http.StatusOK, w.Code)
		var exported domain.ClinicalNote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
		assert.Equal(t, "G43.9", exported.SOAP.Assessment.ICD10)

		w = env.do(http.MethodGet, "/api/v1/notes/"+rec.ID+"/export?format=xml", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Export_All_And_Import", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/v1/notes/export?format=json", "")
		require.Equal(t, http.StatusOK, w.Code)
		exported := w.Body.String()

		w = env.do(http.MethodGet, "/api/v1/notes/export?format=csv", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id","created_at","chief_complaint","diagnosis","icd10","summary"`)

		// Everything already exists
		w = env.do(http.MethodPost, "/api/v1/notes/import", exported)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(0), body["imported"])
		assert.Equal(t, float64(1), body["skipped"])

		// A bare note downloaded from the UI
		w = env.do(http.MethodPost, "/api/v1/notes/import", testNoteJSON)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decodeBody(t, w)["imported"])

		w = env.do(http.MethodPost, "/api/v1/notes/import", `{"soap":{}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodPost, "/api/v1/notes/import", `{"notes":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodPost, "/api/v1/notes/import", `{"version":"1.0","notes":[null]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decodeBody(t, w)["skipped"])
	})

	t.Run("Compressed_Import", func(t *testing.T) {
		var buf bytes.Buffer
		zw, err := notestore.NewCompressedWriter(&buf)
		require.NoError(t, err)
		_, err = zw.Write([]byte(testNoteJSON))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/import", &buf)
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(1), decodeBody(t, w)["imported"])
	})

	t.Run("Delete", func(t *testing.T) {
		w := env.do(http.MethodDelete, "/api/v1/notes/"+rec.ID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(http.MethodDelete, "/api/v1/notes/"+rec.ID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNotesRoutes_NoStore(t *testing.T) {
	server := NewServer(&fakeConfigManager{}, Dependencies{Logger: quietLogger()})

	for _, path := range []string{"/api/v1/notes", "/api/v1/notes/export", "/api/v1/usage"} {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestNotesImport_StorageFailure(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	w := env.do(http.MethodPost, "/api/v1/notes/import", testNoteJSON)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.Equal(t, domain.ErrCodeStorage, decodeBody(t, w)["code"])
}
