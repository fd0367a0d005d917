package model

import "time"

// ActivityStreamsContext is the JSON-LD context every normalized activity carries.
const ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"

type ActivityType string

const (
	ActivityTypeCreate ActivityType = "Create"
)

type ObjectType string

const (
	ObjectTypeNote     ObjectType = "Note"
	ObjectTypeImage    ObjectType = "Image"
	ObjectTypeAudio    ObjectType = "Audio"
	ObjectTypeVideo    ObjectType = "Video"
	ObjectTypeDocument ObjectType = "Document"
	ObjectTypePlace    ObjectType = "Place"
)

// IsMedia reports whether objects of this type point at a remote resource by URL.
func (t ObjectType) IsMedia() bool {
	switch t {
	case ObjectTypeImage, ObjectTypeAudio, ObjectTypeVideo, ObjectTypeDocument:
		return true
	default:
		return false
	}
}

type ActorType string

const (
	ActorTypePerson      ActorType = "Person"
	ActorTypeApplication ActorType = "Application"
	ActorTypeGroup       ActorType = "Group"
	ActorTypeService     ActorType = "Service"
)

// Activity is the normalized inbound event shared by every platform.
type Activity struct {
	Context   string       `json:"@context" validate:"required,eq=https://www.w3.org/ns/activitystreams"`
	Type      ActivityType `json:"type" validate:"required,oneof=Create"`
	Published int64        `json:"published" validate:"gt=0"`
	Generator Generator    `json:"generator"`
	Actor     Actor        `json:"actor"`
	Target    Actor        `json:"target"`
	Object    Object       `json:"object"`
}

// Generator identifies the adapter instance that produced an activity.
type Generator struct {
	ID   string    `json:"id" validate:"required"`
	Type ActorType `json:"type" validate:"required,eq=Service"`
	Name string    `json:"name" validate:"required"`
}

type Actor struct {
	ID   string    `json:"id" validate:"required"`
	Type ActorType `json:"type" validate:"required,oneof=Person Application Group Service"`
	Name string    `json:"name,omitempty"`
}

type Object struct {
	ID        string         `json:"id" validate:"required"`
	Type      ObjectType     `json:"type" validate:"required,oneof=Note Image Audio Video Document Place"`
	Content   string         `json:"content,omitempty"`
	MediaType string         `json:"mediaType,omitempty"`
	URL       string         `json:"url,omitempty" validate:"omitempty,url"`
	Name      string         `json:"name,omitempty"`
	Context   *ObjectContext `json:"context,omitempty"`
}

// ObjectContext links an object to the conversation it belongs to (thread, group).
type ObjectContext struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// NewActivity returns a Create activity stamped with the generator identity.
func NewActivity(serviceID, serviceName string, published time.Time) Activity {
	if published.IsZero() {
		published = time.Now()
	}
	return Activity{
		Context:   ActivityStreamsContext,
		Type:      ActivityTypeCreate,
		Published: published.Unix(),
		Generator: Generator{
			ID:   serviceID,
			Type: ActorTypeService,
			Name: serviceName,
		},
	}
}
