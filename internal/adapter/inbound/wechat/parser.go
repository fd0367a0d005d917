package wechat

import (
	"cmp"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonny/chatbridge/internal/domain/model"
)

// inboundMessage is the XML body the platform POSTs for a user message.
type inboundMessage struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	MsgID        string   `xml:"MsgId"`
	Content      string   `xml:"Content"`
	PicURL       string   `xml:"PicUrl"`
	MediaID      string   `xml:"MediaId"`
	Format       string   `xml:"Format"`
	ThumbMediaID string   `xml:"ThumbMediaId"`
	LocationX    float64  `xml:"Location_X"`
	LocationY    float64  `xml:"Location_Y"`
	Label        string   `xml:"Label"`
	Event        string   `xml:"Event"`
}

// parseEvent maps a POSTed XML message to an activity. Event pushes
// (subscribe, menu clicks) and unknown message types yield nil.
func (a *Adapter) parseEvent(ctx context.Context, event model.Event) (*model.Activity, error) {
	var msg inboundMessage
	if err := xml.Unmarshal(event.Body, &msg); err != nil {
		return nil, fmt.Errorf("decode wechat message: %w", err)
	}

	var published time.Time
	if msg.CreateTime > 0 {
		published = time.Unix(msg.CreateTime, 0)
	}
	activity := model.NewActivity(a.serviceID, ServiceName, published)
	activity.Object.ID = msg.MsgID
	if activity.Object.ID == "" {
		activity.Object.ID = msg.FromUserName + "-" + strconv.FormatInt(msg.CreateTime, 10)
	}

	switch msg.MsgType {
	case "text":
		activity.Object.Type = model.ObjectTypeNote
		activity.Object.Content = msg.Content
	case "image":
		activity.Object.Type = model.ObjectTypeImage
		activity.Object.URL = msg.PicURL
		activity.Object.MediaType = "image/jpeg"
	case "voice", "video":
		mediaURL, err := a.client.MediaURL(ctx, msg.MediaID)
		if err != nil {
			return nil, fmt.Errorf("resolve wechat media %s: %w", msg.MediaID, err)
		}
		activity.Object.URL = mediaURL
		if msg.MsgType == "voice" {
			activity.Object.Type = model.ObjectTypeAudio
			activity.Object.MediaType = "audio/" + strings.ToLower(cmp.Or(msg.Format, "amr"))
		} else {
			activity.Object.Type = model.ObjectTypeVideo
			activity.Object.MediaType = "video/mp4"
		}
	case "location":
		activity.Object.Type = model.ObjectTypePlace
		activity.Object.Name = msg.Label
		activity.Object.Content = fmt.Sprintf("%g,%g", msg.LocationX, msg.LocationY)
	default:
		a.logger.Debug("skipping unsupported wechat message", "msg_type", msg.MsgType, "event", msg.Event)
		return nil, nil
	}

	activity.Actor = model.Actor{ID: msg.FromUserName, Type: model.ActorTypePerson, Name: a.senderName(ctx, msg.FromUserName)}
	activity.Target = model.Actor{ID: msg.ToUserName, Type: model.ActorTypePerson, Name: msg.ToUserName}
	return &activity, nil
}

// senderName looks up the follower's nickname, falling back to the open id.
func (a *Adapter) senderName(ctx context.Context, openID string) string {
	if openID == "" {
		return ""
	}
	info, err := a.client.User(ctx, openID)
	if err != nil {
		a.logger.Warn("sender lookup failed, using open id", "open_id", openID, "error", err)
		return openID
	}
	if info.Nickname == "" {
		return openID
	}
	return info.Nickname
}

