package model

// Message is the normalized outbound envelope accepted by Adapter.Send.
type Message struct {
	Context   string        `json:"@context,omitempty"`
	Type      ActivityType  `json:"type,omitempty" validate:"omitempty,oneof=Create"`
	Generator *Generator    `json:"generator,omitempty"`
	Object    MessageObject `json:"object"`
	To        Recipient     `json:"to"`
}

type MessageObject struct {
	ID        string     `json:"id,omitempty"`
	Type      ObjectType `json:"type" validate:"required,oneof=Note Image Audio Video Document Place"`
	Content   string     `json:"content,omitempty"`
	MediaType string     `json:"mediaType,omitempty"`
	URL       string     `json:"url,omitempty" validate:"omitempty,url"`
	Name      string     `json:"name,omitempty"`
}

type Recipient struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type,omitempty"`
}

// NewNote builds a text message for a recipient.
func NewNote(to, content string) Message {
	return Message{
		Context: ActivityStreamsContext,
		Type:    ActivityTypeCreate,
		Object:  MessageObject{Type: ObjectTypeNote, Content: content},
		To:      Recipient{ID: to},
	}
}

// NewMedia builds a media message (Image, Audio, Video) pointing at url.
func NewMedia(to string, objectType ObjectType, url, name string) Message {
	return Message{
		Context: ActivityStreamsContext,
		Type:    ActivityTypeCreate,
		Object:  MessageObject{Type: objectType, URL: url, Name: name},
		To:      Recipient{ID: to},
	}
}
