// Package groupme adapts GroupMe bot callbacks and the GroupMe REST API to the
// normalized adapter contract.
package groupme

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook"
	groupmeapi "github.com/jonny/chatbridge/internal/adapter/outbound/groupme"
	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/port/inbound"
	"github.com/jonny/chatbridge/internal/domain/schema"
	"github.com/jonny/chatbridge/internal/domain/service"
	"github.com/jonny/chatbridge/pkg/ttlcache"
)

const (
	ServiceName = "groupme"

	// DefaultCacheTTL is how long a group listing is served before refetching.
	DefaultCacheTTL = 350 * time.Second
)

// API is the subset of the GroupMe REST client the adapter uses.
type API interface {
	Groups(ctx context.Context, token string) ([]groupmeapi.Group, error)
	PostBotMessage(ctx context.Context, token string, msg groupmeapi.BotPost) error
}

type Config struct {
	ServiceID   string
	Token       string // bot id
	TokenSecret string // user access token
	Username    string // the bot's display name, used for self-echo suppression

	// HTTP, when set, makes the adapter own a webhook server bound to it.
	HTTP *webhook.ServerConfig

	CacheTTL   time.Duration
	APIBaseURL string
	Client     API
	Logger     *slog.Logger
}

type Adapter struct {
	serviceID   string
	token       string
	tokenSecret string
	username    string

	client    API
	logger    *slog.Logger
	router    http.Handler
	transport *webhook.Server
	lifecycle *service.Lifecycle
	bus       *service.EventBus
	pipeline  *service.Pipeline
	channels  *ttlcache.Cache[string, []model.Channel]
}

var _ inbound.Adapter = (*Adapter)(nil)

// New validates credentials and builds the adapter. No network or transport
// activity happens here.
func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.Token == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "token"}
	case cfg.TokenSecret == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "tokenSecret"}
	case cfg.Username == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "username"}
	}

	serviceID := model.ServiceIDOrNew(cfg.ServiceID)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", ServiceName, "service_id", serviceID)

	client := cfg.Client
	if client == nil {
		client = groupmeapi.NewClient(groupmeapi.Config{BaseURL: cfg.APIBaseURL})
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	a := &Adapter{
		serviceID:   serviceID,
		token:       cfg.Token,
		tokenSecret: cfg.TokenSecret,
		username:    cfg.Username,
		client:      client,
		logger:      logger,
		bus:         service.NewEventBus(),
	}
	a.channels = ttlcache.New(ttl, a.fetchChannels)
	a.router = a.setupRouter()
	a.pipeline = service.NewPipeline(a.parseEvent, service.NewActivityValidator(), logger)

	if cfg.HTTP != nil {
		a.transport = webhook.NewServer(*cfg.HTTP, a.router, logger)
		a.lifecycle = service.NewLifecycle(serviceID, a.transport, logger)
	} else {
		a.lifecycle = service.NewLifecycle(serviceID, nil, logger)
	}
	return a, nil
}

func (a *Adapter) ServiceName() string { return ServiceName }
func (a *Adapter) ServiceID() string   { return a.serviceID }

func (a *Adapter) Connect(ctx context.Context) (model.Status, error) {
	return a.lifecycle.Connect(ctx)
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	return a.lifecycle.Disconnect(ctx)
}

// Connected reports the lifecycle state.
func (a *Adapter) Connected() bool { return a.lifecycle.Connected() }

// Addr returns the owned webhook server's bound address, or "".
func (a *Adapter) Addr() string {
	if a.transport == nil {
		return ""
	}
	return a.transport.Addr()
}

// Router returns the webhook routes for mounting on an external server, or nil
// when the adapter serves them on its own transport.
func (a *Adapter) Router() http.Handler {
	if a.transport != nil {
		return nil
	}
	return a.router
}

// Listen streams normalized activities until ctx is done.
func (a *Adapter) Listen(ctx context.Context) (<-chan model.Activity, error) {
	return a.pipeline.Attach(ctx, a.bus), nil
}

func (a *Adapter) Users(context.Context) ([]model.User, error) {
	return nil, fmt.Errorf("%s users: %w", ServiceName, model.ErrNotSupported)
}

// Channels returns the groups visible to the token secret, served from cache
// while fresh.
func (a *Adapter) Channels(ctx context.Context) ([]model.Channel, error) {
	channels, err := a.channels.Get(ctx, a.tokenSecret)
	if err != nil {
		return nil, fmt.Errorf("list %s groups: %w", ServiceName, err)
	}
	return model.CloneChannels(channels), nil
}

func (a *Adapter) fetchChannels(ctx context.Context, tokenSecret string) ([]model.Channel, error) {
	groups, err := a.client.Groups(ctx, tokenSecret)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("fetched groups", "count", len(groups))

	channels := make([]model.Channel, 0, len(groups))
	for _, g := range groups {
		members := make([]model.Member, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, model.Member{ID: m.UserID, Username: m.Nickname, Avatar: m.ImageURL})
		}
		channels = append(channels, model.Channel{
			ID:        g.ID,
			Name:      g.Name,
			Type:      g.Type,
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
			Members:   members,
		})
	}
	return channels, nil
}

// sendTypes is the outbound allow-list.
var sendTypes = []model.ObjectType{model.ObjectTypeNote, model.ObjectTypeImage}

// Send posts a Note or Image as the bot.
func (a *Adapter) Send(ctx context.Context, msg model.Message) (model.Status, error) {
	a.logger.Debug("sending", "type", msg.Object.Type, "to", msg.To.ID)

	if err := model.CheckObjectType(ServiceName, msg.Object.Type, sendTypes); err != nil {
		return model.Status{}, err
	}
	if err := schema.Validate(msg, schema.ContractSend); err != nil {
		return model.Status{}, err
	}

	post := groupmeapi.BotPost{BotID: a.token, Text: msg.Object.Content}
	switch msg.Object.Type {
	case model.ObjectTypeNote:
	case model.ObjectTypeImage:
		post.PictureURL = msg.Object.URL
	default:
		return model.Status{}, &model.UnsupportedTypeError{Service: ServiceName, Type: msg.Object.Type}
	}

	if err := a.client.PostBotMessage(ctx, a.tokenSecret, post); err != nil {
		return model.Status{}, fmt.Errorf("send %s message: %w", ServiceName, err)
	}
	return model.Sent(a.serviceID), nil
}

// parseEvent resolves the group the callback belongs to, then maps it.
func (a *Adapter) parseEvent(ctx context.Context, event model.Event) (*model.Activity, error) {
	msg, err := decodeCallback(event.Body)
	if err != nil {
		return nil, err
	}

	if msg.GroupID != "" {
		channels, err := a.Channels(ctx)
		if err != nil {
			a.logger.Warn("group lookup failed, parsing without group metadata", "group_id", msg.GroupID, "error", err)
		} else {
			event = event.WithGroup(model.FindChannel(channels, msg.GroupID))
		}
	}
	return parseCallback(a.serviceID, msg, event.Group), nil
}
