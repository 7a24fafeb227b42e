package lifecycle

import (
	"encoding/json"
	"time"
)

// Event topics
const (
	TopicSoftDeleted = "entity.soft_deleted"
	TopicRestored    = "entity.restored"
	TopicPurged      = "entity.purged"
)

// Event describes a lifecycle transition of one entity
type Event struct {
	Topic          string    `json:"topic"`
	Entity         string    `json:"entity"`
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	At             time.Time `json:"at"`
}

func (e Event) Serialize() []byte {
	b, _ := json.Marshal(e)
	return b
}
