package models

import "time"

const (
	SenderUser   = "user"
	SenderSystem = "System"
)

type Attachment struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name"`
}

type Media struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// ChatMessage is one transcript line. Sender is "user", "System", or the
// responding entity's name.
type ChatMessage struct {
	ID              string      `json:"id"`
	Sender          string      `json:"sender"`
	Content         string      `json:"content"`
	Timestamp       time.Time   `json:"timestamp"`
	Confidence      *float64    `json:"confidence,omitempty"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	GeneratedMedia  *Media      `json:"generatedMedia,omitempty"`
	IsStrikeMessage bool        `json:"isStrikeMessage,omitempty"`
}
