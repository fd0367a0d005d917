// Package wechat adapts a WeChat official account (server-side callback plus
// customer-service API) to the normalized adapter contract.
package wechat

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonny/chatbridge/internal/adapter/inbound/webhook"
	wechatapi "github.com/jonny/chatbridge/internal/adapter/outbound/wechat"
	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/port/inbound"
	"github.com/jonny/chatbridge/internal/domain/schema"
	"github.com/jonny/chatbridge/internal/domain/service"
)

const ServiceName = "wechat"

// API is the subset of the WeChat REST client the adapter uses.
type API interface {
	MediaAPI
	SendText(ctx context.Context, openID, content string) error
	SendMedia(ctx context.Context, openID string, kind wechatapi.MediaKind, mediaID string) error
	Followers(ctx context.Context) ([]string, error)
	BatchGetUsers(ctx context.Context, openIDs []string) ([]wechatapi.UserInfo, error)
	User(ctx context.Context, openID string) (wechatapi.UserInfo, error)
	MediaURL(ctx context.Context, mediaID string) (string, error)
}

type Config struct {
	// ServiceID doubles as the verification token configured on the platform.
	ServiceID string
	AppID     string
	AppSecret string

	// HTTP, when set, makes the adapter own a webhook server bound to it.
	// Listen requires it.
	HTTP *webhook.ServerConfig

	// TempDir is the parent of per-upload staging directories.
	TempDir    string
	APIBaseURL string
	Client     API
	HTTPClient *http.Client // used for media downloads
	Logger     *slog.Logger
}

type Adapter struct {
	serviceID string

	client    API
	uploader  *MediaUploader
	logger    *slog.Logger
	router    http.Handler
	transport *webhook.Server
	lifecycle *service.Lifecycle
	bus       *service.EventBus
	pipeline  *service.Pipeline
}

var _ inbound.Adapter = (*Adapter)(nil)

// mediaSend maps an outbound object type to its upload kind and default filename.
var mediaSend = map[model.ObjectType]struct {
	kind     wechatapi.MediaKind
	filename string
}{
	model.ObjectTypeAudio: {wechatapi.MediaVoice, "audio.amr"},
	model.ObjectTypeImage: {wechatapi.MediaImage, "image.jpg"},
	model.ObjectTypeVideo: {wechatapi.MediaVideo, "video.mp4"},
}

func New(cfg Config) (*Adapter, error) {
	switch {
	case cfg.AppID == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "appID"}
	case cfg.AppSecret == "":
		return nil, &model.ConfigError{Service: ServiceName, Field: "appSecret"}
	}

	serviceID := model.ServiceIDOrNew(cfg.ServiceID)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", ServiceName, "service_id", serviceID)

	client := cfg.Client
	if client == nil {
		client = wechatapi.NewClient(wechatapi.Config{AppID: cfg.AppID, AppSecret: cfg.AppSecret, BaseURL: cfg.APIBaseURL})
	}

	a := &Adapter{
		serviceID: serviceID,
		client:    client,
		uploader:  NewMediaUploader(client, cfg.HTTPClient, cfg.TempDir, logger),
		logger:    logger,
		bus:       service.NewEventBus(),
	}
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

func (a *Adapter) Addr() string {
	if a.transport == nil {
		return ""
	}
	return a.transport.Addr()
}

func (a *Adapter) Router() http.Handler {
	if a.transport != nil {
		return nil
	}
	return a.router
}

// Listen fails with ErrTransportNotConfigured unless the adapter owns its
// webhook server.
func (a *Adapter) Listen(ctx context.Context) (<-chan model.Activity, error) {
	if !a.lifecycle.HasTransport() {
		return nil, fmt.Errorf("%s listen: %w", ServiceName, model.ErrTransportNotConfigured)
	}
	return a.pipeline.Attach(ctx, a.bus), nil
}

// Users returns every follower's profile.
func (a *Adapter) Users(ctx context.Context) ([]model.User, error) {
	ids, err := a.client.Followers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s followers: %w", ServiceName, err)
	}
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	infos, err := a.client.BatchGetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch %s users: %w", ServiceName, err)
	}

	users := make([]model.User, 0, len(infos))
	for _, info := range infos {
		users = append(users, model.User{
			ID:          info.OpenID,
			Username:    info.Nickname,
			DisplayName: cmp.Or(info.Remark, info.Nickname),
			Avatar:      info.HeadImgURL,
			Language:    info.Language,
		})
	}
	return users, nil
}

// Channels is not supported: an official account has followers, not groups.
func (a *Adapter) Channels(context.Context) ([]model.Channel, error) {
	return nil, fmt.Errorf("%s channels: %w", ServiceName, model.ErrNotSupported)
}

// sendTypes is the outbound allow-list.
var sendTypes = []model.ObjectType{model.ObjectTypeNote, model.ObjectTypeAudio, model.ObjectTypeImage, model.ObjectTypeVideo}

// Send delivers a Note directly, or uploads Audio, Image and Video first.
func (a *Adapter) Send(ctx context.Context, msg model.Message) (model.Status, error) {
	a.logger.Debug("sending", "type", msg.Object.Type, "to", msg.To.ID)

	if err := model.CheckObjectType(ServiceName, msg.Object.Type, sendTypes); err != nil {
		return model.Status{}, err
	}
	if err := schema.Validate(msg, schema.ContractSend); err != nil {
		return model.Status{}, err
	}

	if msg.Object.Type == model.ObjectTypeNote {
		if err := a.client.SendText(ctx, msg.To.ID, msg.Object.Content); err != nil {
			return model.Status{}, fmt.Errorf("send %s text: %w", ServiceName, err)
		}
		return model.Sent(a.serviceID), nil
	}

	media, ok := mediaSend[msg.Object.Type]
	if !ok {
		return model.Status{}, &model.UnsupportedTypeError{Service: ServiceName, Type: msg.Object.Type}
	}
	filename := msg.Object.Name
	if filename == "" {
		filename = media.filename
	}

	mediaID, err := a.uploader.Upload(ctx, msg.Object.URL, media.kind, filename)
	if err != nil {
		return model.Status{}, err
	}
	if err := a.client.SendMedia(ctx, msg.To.ID, media.kind, mediaID); err != nil {
		return model.Status{}, fmt.Errorf("send %s %s: %w", ServiceName, media.kind, err)
	}
	return model.Sent(a.serviceID), nil
}
