package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/lullabot-go/internal/config"
	"github.com/garyellow/lullabot-go/internal/genai"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/slackapp"
	"github.com/garyellow/lullabot-go/internal/storage"
)

// setupTestApp creates a minimal Application for testing endpoints.
func setupTestApp(t *testing.T) *Application {
	t.Helper()

	db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Application{
		db:      db,
		metrics: metrics.New(prometheus.NewRegistry()),
		logger:  logger.New("error"),
	}
}

func serve(t *testing.T, h gin.HandlerFunc, path string) (int, map[string]any) {
	t.Helper()
	router := gin.New()
	router.GET(path, h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	_ = app.db.Close()

	code, body := serve(t, app.livenessCheck, "/livez")
	assert.Equal(t, http.StatusOK, code, "liveness ignores the database")
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessCheck_Healthy(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, app.db.Save(ctx, storage.KarmaKey("T1"), map[string]any{"id": "T1_karma"}))
	require.NoError(t, app.db.Save(ctx, storage.KarmaKey("T2"), map[string]any{"id": "T2_karma"}))
	require.NoError(t, app.db.Save(ctx, storage.FactoidKey("T1"), map[string]any{"id": "T1_factoids"}))

	code, body := serve(t, app.readinessCheck, "/readyz")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "connected", body["database"])

	teams, ok := body["teams"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2, teams["karma"], 0)
	assert.InDelta(t, 1, teams["factoids"], 0)

	features, ok := body["features"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"socket_mode", "events_api", "conversation", "snapshots"} {
		assert.Equal(t, false, features[name], name)
	}
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	require.NoError(t, app.db.Close())

	code, body := serve(t, app.readinessCheck, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "database unavailable", body["reason"])
}

func TestReadinessCheck_SocketDisconnected(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	router := slackapp.NewRouter(nil, nil, app.logger, app.metrics)
	app.socket = slackapp.NewSocketListener(slack.New("xoxb-test", slack.OptionAppLevelToken("xapp-test")), router, app.logger)

	code, body := serve(t, app.readinessCheck, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "slack disconnected", body["reason"])
}

func TestGetTeamStats_DatabaseError(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	require.NoError(t, app.db.Close())

	assert.Empty(t, app.getTeamStats(context.Background()))
}

func TestBuildLLMConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		LLMProviders:    []string{"anthropic", "bogus", "openai"},
		OpenAIAPIKey:    "sk-test",
		OpenAIBaseURL:   "http://localhost:11434/v1",
		AnthropicAPIKey: "sk-ant",
	}

	llm := buildLLMConfig(cfg)
	assert.Equal(t, []genai.Provider{genai.ProviderAnthropic, genai.ProviderOpenAI}, llm.Providers)
	assert.Equal(t, "http://localhost:11434/v1", llm.OpenAI.BaseURL)
	assert.Equal(t, []genai.Provider{genai.ProviderAnthropic, genai.ProviderOpenAI}, llm.ConfiguredProviders())
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	t.Parallel()
	router := gin.New()
	router.Use(loggingMiddleware(logger.New("error")))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-Id", "corr-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "corr-1", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

// fakeSlack answers the Web API calls made during startup and dispatch.
type fakeSlack struct {
	mu    sync.Mutex
	posts []map[string]string
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")
	switch strings.TrimPrefix(r.URL.Path, "/") {
	case "auth.test":
		_, _ = w.Write([]byte(`{"ok":true,"user":"lullabot","user_id":"UBOT","team_id":"T1"}`))
	case "chat.postMessage":
		f.mu.Lock()
		f.posts = append(f.posts, map[string]string{
			"channel":   r.FormValue("channel"),
			"text":      r.FormValue("text"),
			"thread_ts": r.FormValue("thread_ts"),
		})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000001.000200"}`))
	default:
		_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
	}
}

func (f *fakeSlack) sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.posts...)
}

func sign(secret, body string, ts int64) (string, string) {
	stamp := strconv.FormatInt(ts, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + stamp + ":" + body))
	return stamp, "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// The whole HTTP Events API path: signed request in, reply posted out.
func TestBuild_EventsAPIEndToEnd(t *testing.T) {
	fake := &fakeSlack{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	prev := slackAPIURL
	slackAPIURL = srv.URL + "/"
	t.Cleanup(func() { slackAPIURL = prev })

	const secret = "8f742231b10e8888abcd99yyyzzz85a5"
	cfg := &config.Config{
		SlackBotToken:      "xoxb-test",
		SlackSigningSecret: secret,
		Port:               "0",
		MetricsUsername:    "prometheus",
		ShutdownTimeout:    time.Second,
		Bot:                config.DefaultBotConfig(),
	}

	db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.New("error")
	registry := prometheus.NewRegistry()
	app, err := build(context.Background(), cfg, log, db, metrics.New(registry), registry)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.llmLimiter.Stop()
		app.userLimiter.Stop()
	})

	assert.Equal(t, "UBOT", app.slack.BotUserID())
	assert.Nil(t, app.socket)
	require.NotNil(t, app.webhook)

	body := `{"token":"x","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1700000000,` +
		`"event":{"type":"app_mention","user":"U1","text":"<@UBOT> botsnack","ts":"1700000000.000100","channel":"C1","event_ts":"1700000000.000100"}}`
	stamp, sig := sign(secret, body, time.Now().Unix())

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", stamp)
	req.Header.Set("X-Slack-Signature", sig)
	w := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.router.Wait(ctx))

	posts := fake.sent()
	require.Len(t, posts, 1)
	assert.Equal(t, "C1", posts[0]["channel"])
	assert.Equal(t, "1700000000.000100", posts[0]["thread_ts"])
	assert.NotEmpty(t, posts[0]["text"])
}
