package groupme

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonny/chatbridge/pkg/apierror"
)

func TestClient_Groups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/groups", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":[{"id":"28209380","name":"Broid","type":"private","created_at":1483676486,"updated_at":1483677146,
			"members":[{"user_id":"45346741","nickname":"Sally","image_url":"https://i.groupme.com/a.jpeg"}]}],"meta":{"code":200}}`))
	}))
	defer srv.Close()

	groups, err := NewClient(Config{BaseURL: srv.URL}).Groups(context.Background(), "secret")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "28209380", groups[0].ID)
	assert.Equal(t, int64(1483676486), groups[0].CreatedAt)
	require.Len(t, groups[0].Members, 1)
	assert.Equal(t, "Sally", groups[0].Members[0].Nickname)
}

func TestClient_PostBotMessage(t *testing.T) {
	var got BotPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/bots/post", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}).PostBotMessage(context.Background(), "secret",
		BotPost{BotID: "bot-1", Text: "hello", PictureURL: "https://i.groupme.com/p.png"})
	require.NoError(t, err)
	assert.Equal(t, BotPost{BotID: "bot-1", Text: "hello", PictureURL: "https://i.groupme.com/p.png"}, got)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Groups(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, apierror.IsCode(err, http.StatusUnauthorized))
}
