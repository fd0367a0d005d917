// Package slack adapts the Slack Events API and Web API to the normalized
// adapter contract.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook"
	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/port/inbound"
	"github.com/jonny/chatbridge/internal/domain/schema"
	"github.com/jonny/chatbridge/internal/domain/service"
	"github.com/jonny/chatbridge/pkg/ttlcache"
)

const (
	ServiceName     = "slack"
	DefaultCacheTTL = 350 * time.Second
)

// API is the subset of *slack.Client the adapter uses.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	GetUsersContext(ctx context.Context, options ...slackapi.GetUsersOption) ([]slackapi.User, error)
	GetConversationsContext(ctx context.Context, params *slackapi.GetConversationsParameters) ([]slackapi.Channel, string, error)
}

type Config struct {
	ServiceID     string
	BotToken      string
	SigningSecret string
	// BotUserID identifies the bot's own messages for self-echo suppression.
	BotUserID string

	HTTP       *webhook.ServerConfig
	CacheTTL   time.Duration
	APIBaseURL string
	Client     API
	Logger     *slog.Logger
}

type Adapter struct {
	serviceID     string
	botToken      string
	signingSecret string
	botUserID     string

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

func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.BotToken == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "botToken"}
	case cfg.SigningSecret == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "signingSecret"}
	}

	serviceID := model.ServiceIDOrNew(cfg.ServiceID)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", ServiceName, "service_id", serviceID)

	client := cfg.Client
	if client == nil {
		var opts []slackapi.Option
		if cfg.APIBaseURL != "" {
			opts = append(opts, slackapi.OptionAPIURL(cfg.APIBaseURL))
		}
		client = slackapi.New(cfg.BotToken, opts...)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	a := &Adapter{
		serviceID:     serviceID,
		botToken:      cfg.BotToken,
		signingSecret: cfg.SigningSecret,
		botUserID:     cfg.BotUserID,
		client:        client,
		logger:        logger,
		bus:           service.NewEventBus(),
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

func (a *Adapter) Connected() bool { return a.lifecycle.Connected() }

func (a *Adapter) Router() http.Handler {
	if a.transport != nil {
		return nil
	}
	return a.router
}

func (a *Adapter) Listen(ctx context.Context) (<-chan model.Activity, error) {
	return a.pipeline.Attach(ctx, a.bus), nil
}

// Users lists workspace members, bots included.
func (a *Adapter) Users(ctx context.Context) ([]model.User, error) {
	members, err := a.client.GetUsersContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s users: %w", ServiceName, err)
	}
	users := make([]model.User, 0, len(members))
	for _, m := range members {
		if m.Deleted {
			continue
		}
		display := m.Profile.DisplayName
		if display == "" {
			display = m.RealName
		}
		users = append(users, model.User{
			ID:          m.ID,
			Username:    m.Name,
			DisplayName: display,
			Avatar:      m.Profile.Image72,
			Language:    m.Locale,
			IsBot:       m.IsBot,
		})
	}
	return users, nil
}

func (a *Adapter) Channels(ctx context.Context) ([]model.Channel, error) {
	channels, err := a.channels.Get(ctx, a.botToken)
	if err != nil {
		return nil, fmt.Errorf("list %s channels: %w", ServiceName, err)
	}
	return model.CloneChannels(channels), nil
}

func (a *Adapter) fetchChannels(ctx context.Context, _ string) ([]model.Channel, error) {
	var (
		channels []model.Channel
		cursor   string
	)
	for {
		page, next, err := a.client.GetConversationsContext(ctx, &slackapi.GetConversationsParameters{
			Cursor:          cursor,
			ExcludeArchived: true,
			Limit:           200,
			Types:           []string{"public_channel", "private_channel"},
		})
		if err != nil {
			return nil, err
		}
		for _, ch := range page {
			kind := "public"
			if ch.IsPrivate {
				kind = "private"
			}
			members := make([]model.Member, 0, len(ch.Members))
			for _, id := range ch.Members {
				members = append(members, model.Member{ID: id})
			}
			channels = append(channels, model.Channel{
				ID:        ch.ID,
				Name:      ch.Name,
				Type:      kind,
				CreatedAt: int64(ch.Created),
				UpdatedAt: int64(ch.Created),
				Members:   members,
			})
		}
		if next == "" {
			return channels, nil
		}
		cursor = next
	}
}

var sendTypes = []model.ObjectType{model.ObjectTypeNote, model.ObjectTypeImage}

// Send posts a Note as text, or an Image as an attachment.
func (a *Adapter) Send(ctx context.Context, msg model.Message) (model.Status, error) {
	a.logger.Debug("sending", "type", msg.Object.Type, "to", msg.To.ID)

	if err := model.CheckObjectType(ServiceName, msg.Object.Type, sendTypes); err != nil {
		return model.Status{}, err
	}
	if err := schema.Validate(msg, schema.ContractSend); err != nil {
		return model.Status{}, err
	}

	var opts []slackapi.MsgOption
	switch msg.Object.Type {
	case model.ObjectTypeNote:
		opts = append(opts, slackapi.MsgOptionText(msg.Object.Content, false))
	case model.ObjectTypeImage:
		fallback := msg.Object.Name
		if fallback == "" {
			fallback = msg.Object.URL
		}
		opts = append(opts,
			slackapi.MsgOptionText(msg.Object.Content, false),
			slackapi.MsgOptionAttachments(slackapi.Attachment{ImageURL: msg.Object.URL, Fallback: fallback}),
		)
	default:
		return model.Status{}, &model.UnsupportedTypeError{Service: ServiceName, Type: msg.Object.Type}
	}

	if _, _, err := a.client.PostMessageContext(ctx, msg.To.ID, opts...); err != nil {
		return model.Status{}, fmt.Errorf("send %s message: %w", ServiceName, err)
	}
	return model.Sent(a.serviceID), nil
}
