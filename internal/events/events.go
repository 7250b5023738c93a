package events

import (
	"context"
	"time"

	"github.com/rentwise/rentwise/internal/model"
)

// Routing keys
const (
	RoutingKeyUserCreated = "user.created"
)

// UserCreated is published once a user record has been stored.
type UserCreated struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Publisher delivers domain events to interested consumers.
type Publisher interface {
	PublishUserCreated(ctx context.Context, evt UserCreated) error
	Close() error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

// PublishUserCreated implements Publisher.
func (Noop) PublishUserCreated(context.Context, UserCreated) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
