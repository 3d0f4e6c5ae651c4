package models

// ActorType is the category of whoever initiated a state change.
type ActorType string

const (
	ActorSystem        ActorType = "system"
	ActorCustomer      ActorType = "customer"
	ActorMover         ActorType = "mover"
	ActorPlatformAdmin ActorType = "platform_admin"
)

func (t ActorType) IsValid() bool {
	switch t {
	case ActorSystem, ActorCustomer, ActorMover, ActorPlatformAdmin:
		return true
	}
	return false
}

// Actor identifies who performed an action. ID is nil for system actions.
type Actor struct {
	ID   *string   `json:"id,omitempty"`
	Type ActorType `json:"type"`
	Name string    `json:"name"`
}

// SystemActor returns an actor with no user id.
func SystemActor(name string) Actor {
	return Actor{Type: ActorSystem, Name: name}
}
