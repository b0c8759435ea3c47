package migrate

// State is a step of a migration run. A run only moves forward; Failed is
// terminal and may follow any state.
type State int

const (
	NotStarted State = iota
	BackedUp
	Loaded
	Resolved
	Written
	Cleaned
	Logged
	Done
	Failed
)

var stateNames = [...]string{
	NotStarted: "not_started",
	BackedUp:   "backed_up",
	Loaded:     "loaded",
	Resolved:   "resolved",
	Written:    "written",
	Cleaned:    "cleaned",
	Logged:     "logged",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// next reports whether moving from s to to is allowed.
func (s State) next(to State) bool {
	if s == Done || s == Failed {
		return false
	}
	return to == Failed || to == s+1
}
