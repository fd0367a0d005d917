package slack

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonny/chatbridge/internal/domain/model"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeAPI struct {
	mu            sync.Mutex
	posts         []string
	postOptions   [][]slackapi.MsgOption
	users         []slackapi.User
	channels      []slackapi.Channel
	conversations int
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, channelID)
	f.postOptions = append(f.postOptions, options)
	return channelID, "1483677146.000200", nil
}

func (f *fakeAPI) GetUsersContext(context.Context, ...slackapi.GetUsersOption) ([]slackapi.User, error) {
	return f.users, nil
}

func (f *fakeAPI) GetConversationsContext(context.Context, *slackapi.GetConversationsParameters) ([]slackapi.Channel, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations++
	return f.channels, "", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(t *testing.T, api *fakeAPI) *Adapter {
	t.Helper()
	a, err := New(Config{
		ServiceID:     "svc-slack",
		BotToken:      "xoxb-test",
		SigningSecret: signingSecret,
		BotUserID:     "UBOT",
		Client:        api,
		Logger:        discardLogger(),
	})
	require.NoError(t, err)
	return a
}

func signedRequest(body, secret string) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("X-Slack-Request-Timestamp", ts)
	r.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func messageCallback(user, botID, text string) string {
	return `{"token":"x","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1483677146,
"event":{"type":"message","channel":"C1","channel_type":"channel","user":"` + user + `","bot_id":"` + botID + `",
"text":"` + text + `","ts":"1483677146.000200","client_msg_id":"cm-` + text + `"}}`
}

func next(t *testing.T, stream <-chan model.Activity) (model.Activity, bool) {
	t.Helper()
	select {
	case a, ok := <-stream:
		return a, ok
	case <-time.After(200 * time.Millisecond):
		return model.Activity{}, false
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(Config{SigningSecret: "s"})
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "botToken", cfgErr.Field)

	_, err = New(Config{BotToken: "b"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "signingSecret", cfgErr.Field)
}

func TestRouter_URLVerification(t *testing.T) {
	a := newTestAdapter(t, &fakeAPI{})
	body := `{"token":"x","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, signedRequest(body, signingSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", w.Body.String())
}

func TestRouter_BadSignature(t *testing.T) {
	a := newTestAdapter(t, &fakeAPI{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, _ := a.Listen(ctx)

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, signedRequest(messageCallback("U1", "", "hi"), "wrong-secret"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	unsigned := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(messageCallback("U1", "", "hi")))
	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, unsigned)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, ok := next(t, stream)
	assert.False(t, ok)
}

func TestListen_MessageAndSelfEcho(t *testing.T) {
	a := newTestAdapter(t, &fakeAPI{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, _ := a.Listen(ctx)

	for _, body := range []string{
		messageCallback("UBOT", "", "mine"),
		messageCallback("U2", "B99", "other-bot"),
		messageCallback("U1", "", "hello"),
	} {
		w := httptest.NewRecorder()
		a.Router().ServeHTTP(w, signedRequest(body, signingSecret))
		require.Equal(t, http.StatusOK, w.Code)
	}

	activity, ok := next(t, stream)
	require.True(t, ok)
	assert.Equal(t, int64(1483677146), activity.Published)
	assert.Equal(t, model.Actor{ID: "U1", Type: model.ActorTypePerson}, activity.Actor)
	assert.Equal(t, model.Actor{ID: "C1", Type: model.ActorTypeGroup}, activity.Target)
	assert.Equal(t, model.Object{ID: "cm-hello", Type: model.ObjectTypeNote, Content: "hello"}, activity.Object)

	_, ok = next(t, stream)
	assert.False(t, ok, "bot messages must be suppressed")
}

func TestSend(t *testing.T) {
	api := &fakeAPI{}
	a := newTestAdapter(t, api)
	ctx := context.Background()

	status, err := a.Send(ctx, model.NewNote("C1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, model.Sent("svc-slack"), status)

	_, err = a.Send(ctx, model.NewMedia("C1", model.ObjectTypeImage, "https://example.com/cat.png", "cat"))
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C1"}, api.posts)
	assert.Len(t, api.postOptions[1], 2)

	_, err = a.Send(ctx, model.NewMedia("C1", model.ObjectTypeVideo, "https://example.com/v.mp4", ""))
	assert.ErrorIs(t, err, model.ErrNotSupported)
	assert.Contains(t, err.Error(), "Video")
	assert.Len(t, api.posts, 2)
	msg := model.NewNote("C1", "hi")
	msg.Object.Type = "Sticker"
	_, err = a.Send(ctx, msg)
	var unsupported *model.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), "Sticker")
	assert.Len(t, api.posts, 2)
}

func TestUsers(t *testing.T) {
	api := &fakeAPI{users: []slackapi.User{
		{ID: "U1", Name: "alice", RealName: "Alice A", Profile: slackapi.UserProfile{Image72: "https://a/72.png"}},
		{ID: "U2", Name: "gone", Deleted: true},
		{ID: "UBOT", Name: "bridge", IsBot: true, Profile: slackapi.UserProfile{DisplayName: "Bridge"}},
	}}
	users, err := newTestAdapter(t, api).Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.User{
		{ID: "U1", Username: "alice", DisplayName: "Alice A", Avatar: "https://a/72.png"},
		{ID: "UBOT", Username: "bridge", DisplayName: "Bridge", IsBot: true},
	}, users)
}

func TestChannels_Cached(t *testing.T) {
	var ch slackapi.Channel
	ch.ID = "C1"
	ch.Name = "general"
	ch.Members = []string{"U1"}
	api := &fakeAPI{channels: []slackapi.Channel{ch}}
	a := newTestAdapter(t, api)

	first, err := a.Channels(context.Background())
	require.NoError(t, err)
	_, err = a.Channels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, api.conversations)
	require.Len(t, first, 1)
	assert.Equal(t, "general", first[0].Name)
	assert.Equal(t, "public", first[0].Type)
	assert.Equal(t, []model.Member{{ID: "U1"}}, first[0].Members)
}
