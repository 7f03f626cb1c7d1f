package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Content is either plain text or a list of parts. It marshals to a JSON
// string in the first case and to an array in the second.
type Content struct {
	Text  string
	Parts []ContentPart
}

func TextContent(s string) Content { return Content{Text: s} }

func (c Content) IsParts() bool { return c.Parts != nil }

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		c.Text = ""
		return json.Unmarshal(data, &c.Parts)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("message content must be a string or an array of parts: %w", err)
	}
	c.Text, c.Parts = s, nil
	return nil
}

type Message struct {
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation. Title and LastSynced are nil on records
// written before those fields existed.
type Session struct {
	ID          string     `json:"id"`
	Title       *string    `json:"title,omitempty"`
	Messages    []Message  `json:"messages"`
	Created     time.Time  `json:"created"`
	LastUpdated time.Time  `json:"lastUpdated"`
	LastSynced  *time.Time `json:"lastSynced,omitempty"`
}

// NewSessionID derives an ID from the creation time.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%d", now.UnixMilli())
}

// NeedsSync reports whether the session changed since it was last pushed.
func (s Session) NeedsSync() bool {
	return s.LastSynced == nil || s.LastUpdated.After(*s.LastSynced)
}
