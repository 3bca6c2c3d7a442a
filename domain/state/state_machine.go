package state

// Category groups states by how far along the review workflow a record is.
type Category uint

const (
	Draft Category = iota
	InReview
	Done
	Returned
)

// Editable reports whether records in this category accept plain edits and
// deletes. Records under review or already approved are locked.
func (c Category) Editable() bool {
	return c == Draft || c == Returned
}

type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

type Transition struct {
	Name string `json:"name"`
	From State  `json:"from"`
	To   State  `json:"to"`
}

// stateless object, just used for state computing
type StateMachine struct {
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
}

func NewStateMachine(states []State, transitions []Transition) *StateMachine {
	return &StateMachine{States: states, Transitions: transitions}
}

func (sm *StateMachine) FindState(name string) (State, bool) {
	for _, s := range sm.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

func (sm *StateMachine) FindTransition(name string) (Transition, bool) {
	for _, t := range sm.Transitions {
		if t.Name == name {
			return t, true
		}
	}
	return Transition{}, false
}

func (sm *StateMachine) AvailableTransitions(fromState string, toState string) []Transition {
	r := []Transition{}
	for _, transition := range sm.Transitions {
		if (fromState == "" || fromState == transition.From.Name) && (toState == "" || toState == transition.To.Name) {
			r = append(r, transition)
		}
	}
	return r
}
