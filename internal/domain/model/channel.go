package model

import "slices"

// Channel is a normalized group, channel or conversation listing entry.
// Values handed out by an adapter are snapshots and must not be mutated.
type Channel struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	Members   []Member `json:"members"`
}

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// User is a roster entry returned by Adapter.Users.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Language    string `json:"language,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
}

// FindChannel returns the first channel whose ID matches, or nil.
func FindChannel(channels []Channel, id string) *Channel {
	for i := range channels {
		if channels[i].ID == id {
			c := channels[i].Clone()
			return &c
		}
	}
	return nil
}

// Clone returns a deep copy of the channel.
func (c Channel) Clone() Channel {
	c.Members = slices.Clone(c.Members)
	return c
}

// CloneChannels deep-copies a listing so callers cannot alter a cached snapshot.
func CloneChannels(channels []Channel) []Channel {
	if channels == nil {
		return nil
	}
	out := make([]Channel, len(channels))
	for i, c := range channels {
		out[i] = c.Clone()
	}
	return out
}
