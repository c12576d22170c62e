package models

type EntityStatus string

const (
	StatusOnline    EntityStatus = "Online"
	StatusDormant   EntityStatus = "Dormant"
	StatusCompiling EntityStatus = "Compiling"
	StatusError     EntityStatus = "Error"
)

// Entity is an AI persona the user can converse with.
type Entity struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Designation       string       `json:"designation"`
	Status            EntityStatus `json:"status"`
	CoreLogic         string       `json:"coreLogic"`
	PersonalityMatrix string       `json:"personalityMatrix,omitempty"`
	CurrentThought    string       `json:"currentThought,omitempty"`
}

func (e Entity) Online() bool { return e.Status == StatusOnline }
