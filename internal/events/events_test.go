package events

import (
	"context"
	"testing"
	"time"

	"github.com/rentwise/rentwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	err := p.PublishUserCreated(context.Background(), UserCreated{
		ID:        "1",
		Email:     "a@x.com",
		Role:      model.RoleTenant,
		CreatedAt: time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNewRabbitPublisherInvalidURL(t *testing.T) {
	_, err := NewRabbitPublisher("http://not-amqp", "")
	require.Error(t, err)
}
