package client

import (
	"context"

	"github.com/lumensanctum/sanctum/internal/client/models"
)

// Classifier turns one conversational turn into an Outcome.
//
// Implementations must be safe for concurrent use: group chat classifies the
// same turn against several entities at once.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (models.Outcome, error)
}

// UserContext is the part of the session the backend gets to see.
// Credentials never leave the client in the request body.
type UserContext struct {
	Username     string      `json:"username"`
	Role         models.Role `json:"role"`
	Subscription models.Tier `json:"subscription"`
	Strikes      int         `json:"strikes"`
}

type ClassifyRequest struct {
	User              UserContext          `json:"user"`
	Entity            models.Entity        `json:"entity"`
	History           []models.ChatMessage `json:"history"`
	LastTurnWasStrike bool                 `json:"lastTurnWasStrike"`
	Attachment        *models.Attachment   `json:"attachment,omitempty"`

	// APIKey is the user's provider key for this entity, sent as a header.
	APIKey string `json:"-"`
}

func NewClassifyRequest(u *models.User, e models.Entity, history []models.ChatMessage, lastTurnWasStrike bool, att *models.Attachment) ClassifyRequest {
	return ClassifyRequest{
		User: UserContext{
			Username:     u.Username,
			Role:         u.Role,
			Subscription: u.Subscription,
			Strikes:      u.Strikes,
		},
		Entity:            e,
		History:           history,
		LastTurnWasStrike: lastTurnWasStrike,
		Attachment:        att,
		APIKey:            u.APIKeyFor(e.ID),
	}
}
