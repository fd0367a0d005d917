package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack/slackevents"

	"github.com/jonny/chatbridge/internal/domain/model"
)

// parseEvent maps a message callback to an activity. Other event types and
// message subtypes (edits, joins) yield nil.
func (a *Adapter) parseEvent(_ context.Context, event model.Event) (*model.Activity, error) {
	parsed, err := slackevents.ParseEvent(json.RawMessage(event.Body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("decode slack event: %w", err)
	}
	msg, ok := parsed.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || msg.SubType != "" {
		return nil, nil
	}

	activity := model.NewActivity(a.serviceID, ServiceName, parseTimestamp(msg.TimeStamp))
	activity.Actor = model.Actor{ID: msg.User, Type: model.ActorTypePerson}

	targetType := model.ActorTypeGroup
	if msg.ChannelType == "im" {
		targetType = model.ActorTypePerson
	}
	activity.Target = model.Actor{ID: msg.Channel, Type: targetType}

	objectID := msg.ClientMsgID
	if objectID == "" {
		objectID = msg.TimeStamp
	}
	activity.Object = model.Object{ID: objectID, Type: model.ObjectTypeNote, Content: msg.Text}
	if msg.ThreadTimeStamp != "" {
		activity.Object.Context = &model.ObjectContext{ID: msg.ThreadTimeStamp, Type: "thread"}
	}
	return &activity, nil
}

// parseTimestamp converts a Slack "seconds.micros" timestamp.
func parseTimestamp(ts string) time.Time {
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0)
}
