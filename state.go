package cayenne

// PersistenceState describes the lifecycle state of a persistent object
// relative to the object context that owns it.
type PersistenceState uint8

// Persistence states.
const (
	// Transient objects are not registered with any context.
	Transient PersistenceState = iota
	// New objects are registered and will be inserted on commit.
	New
	// Committed objects are in sync with the database.
	Committed
	// Modified objects have uncommitted changes.
	Modified
	// Deleted objects will be deleted on commit.
	Deleted
	// Hollow objects know their id but were not fetched yet.
	Hollow
)

var stateNames = [...]string{
	Transient: "transient",
	New:       "new",
	Committed: "committed",
	Modified:  "modified",
	Deleted:   "deleted",
	Hollow:    "hollow",
}

// String returns the state name.
func (s PersistenceState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Dirty reports whether the state requires a commit.
func (s PersistenceState) Dirty() bool {
	return s == New || s == Modified || s == Deleted
}
