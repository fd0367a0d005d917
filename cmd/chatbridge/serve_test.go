package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonny/chatbridge/internal/config"
	"github.com/jonny/chatbridge/internal/logging"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.GroupMe = config.GroupMeConfig{
		Enabled:     true,
		ServiceID:   "gm-1",
		Token:       "bot-id",
		TokenSecret: "user-token",
		Username:    "bridgebot",
	}
	cfg.Slack = config.SlackConfig{
		Enabled:       true,
		ServiceID:     "sl-1",
		BotToken:      "xoxb-test",
		SigningSecret: "secret",
		HTTP:          &config.HTTPConfig{Host: "127.0.0.1", Port: 0},
	}
	return cfg
}

func testFactory(t *testing.T) *logging.Factory {
	t.Helper()
	logs, err := logging.NewFactory(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return logs
}

func TestBuildAdapters(t *testing.T) {
	adapters, err := buildAdapters(testConfig(), testFactory(t))
	require.NoError(t, err)
	require.Len(t, adapters, 2)

	assert.Equal(t, "groupme", adapters[0].ServiceName())
	assert.Equal(t, "gm-1", adapters[0].ServiceID())
	assert.NotNil(t, adapters[0].Router(), "groupme without http mounts on the shared mux")

	assert.Equal(t, "slack", adapters[1].ServiceName())
	assert.Nil(t, adapters[1].Router(), "slack owns its transport")
}

func TestBuildAdapters_BadLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.GroupMe.LogLevel = "chatty"

	_, err := buildAdapters(cfg, testFactory(t))
	assert.Error(t, err)
}

func TestSharedMux(t *testing.T) {
	cfg := testConfig()
	adapters, err := buildAdapters(cfg, testFactory(t))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := sharedMux(adapters, readiness(adapters), logger)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "nothing connected yet")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groupme/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"system":true,"text":"x joined"}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groupme/", body))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/slack/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness_FollowsConnection(t *testing.T) {
	cfg := testConfig()
	cfg.Slack.Enabled = false
	adapters, err := buildAdapters(cfg, testFactory(t))
	require.NoError(t, err)

	checker := readiness(adapters)
	ctx := context.Background()
	assert.Equal(t, "unhealthy", string(checker.Check(ctx).Status))

	_, err = adapters[0].Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapters[0].Disconnect(context.Background()) })

	assert.Equal(t, "healthy", string(checker.Check(ctx).Status))
}

func TestTransportConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, transportConfig(cfg, nil))

	tc := transportConfig(cfg, &config.HTTPConfig{Host: "0.0.0.0", Port: 9100})
	require.NotNil(t, tc)
	assert.Equal(t, "0.0.0.0:9100", tc.Address())
	assert.Equal(t, cfg.Webhook.RateLimit, tc.RateLimit)
	assert.Equal(t, cfg.Webhook.MaxBodyBytes, tc.MaxBodyBytes)
}
