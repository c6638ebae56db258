package event

type Type string

const (
	TypeUserSignedUp   Type = "user.signed_up"
	TypeUserLoggedIn   Type = "user.logged_in"
	TypeUserLoginFail  Type = "user.login_failed"
	TypeTokenRejected  Type = "token.rejected"
	TypeHouseGenerated Type = "house.generated"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

// Bus fans events out to subscribers. Publish must never block the caller.
type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
