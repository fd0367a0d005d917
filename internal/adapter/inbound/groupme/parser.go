package groupme

import (
	"cmp"
	"encoding/json"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/jonny/chatbridge/internal/domain/model"
)

// callback is a GroupMe bot callback body.
type callback struct {
	ID          string       `json:"id"`
	SourceGUID  string       `json:"source_guid"`
	CreatedAt   int64        `json:"created_at"`
	GroupID     string       `json:"group_id"`
	UserID      string       `json:"user_id"`
	SenderID    string       `json:"sender_id"`
	SenderType  string       `json:"sender_type"`
	Name        string       `json:"name"`
	AvatarURL   string       `json:"avatar_url"`
	Text        string       `json:"text"`
	System      bool         `json:"system"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func decodeCallback(body []byte) (callback, error) {
	var msg callback
	if err := json.Unmarshal(body, &msg); err != nil {
		return callback{}, fmt.Errorf("decode groupme callback: %w", err)
	}
	return msg, nil
}

// parseCallback maps a callback to an activity. It returns nil for callbacks
// that carry nothing to surface.
func parseCallback(serviceID string, msg callback, group *model.Channel) *model.Activity {
	image := firstImage(msg.Attachments)
	if msg.Text == "" && image == nil {
		return nil
	}

	var published time.Time
	if msg.CreatedAt > 0 {
		published = time.Unix(msg.CreatedAt, 0)
	}
	activity := model.NewActivity(serviceID, ServiceName, published)

	actorID := cmp.Or(msg.SenderID, msg.UserID, msg.Name)
	actorType := model.ActorTypePerson
	if msg.SenderType == "bot" {
		actorType = model.ActorTypeApplication
	}
	activity.Actor = model.Actor{ID: actorID, Type: actorType, Name: msg.Name}

	activity.Target = model.Actor{ID: msg.GroupID, Type: model.ActorTypeGroup}
	if group != nil {
		activity.Target.Name = group.Name
	}

	objectID := cmp.Or(msg.ID, msg.SourceGUID)
	if objectID == "" {
		objectID = model.NewObjectID()
	}
	activity.Object = model.Object{ID: objectID, Type: model.ObjectTypeNote, Content: msg.Text}
	if image != nil {
		activity.Object.Type = model.ObjectTypeImage
		activity.Object.URL = image.URL
		activity.Object.MediaType = mediaTypeOf(image.URL)
	}
	if group != nil {
		activity.Object.Context = &model.ObjectContext{ID: group.ID, Type: group.Type, Content: group.Name}
	}
	return &activity
}

func firstImage(attachments []attachment) *attachment {
	for i := range attachments {
		if attachments[i].Type == "image" && attachments[i].URL != "" {
			return &attachments[i]
		}
	}
	return nil
}

// mediaTypeOf guesses a MIME type from the URL's extension. GroupMe image URLs
// look like https://i.groupme.com/1024x768.jpeg.<hash>, so the second-to-last
// dotted segment is tried as well.
func mediaTypeOf(rawURL string) string {
	base := path.Base(rawURL)
	parts := strings.Split(base, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		if t := mime.TypeByExtension("." + strings.ToLower(parts[i])); t != "" {
			return t
		}
	}
	return ""
}
