package scene

// BoardStatus mirrors the board lifecycle states the evaluator cares about.
type BoardStatus string

const (
	StatusDraft     BoardStatus = "draft"
	StatusActive    BoardStatus = "active"
	StatusCompleted BoardStatus = "completed"
	StatusArchived  BoardStatus = "archived"
)

// Scene is the minimal view the evaluator needs of a board's current scene.
type Scene struct {
	ID    string
	Mode  Mode
	Flags []Capability
}

// Has reports flag-set membership.
func (s Scene) Has(cap Capability) bool {
	for _, flag := range s.Flags {
		if flag == cap {
			return true
		}
	}
	return false
}

// Actionable reports whether the board's lifecycle status permits
// mutation at all. Completed and archived boards are read-only.
func Actionable(status BoardStatus) bool {
	return status == StatusDraft || status == StatusActive
}

// Allowed decides whether a capability is currently permitted for a board.
// A non-actionable lifecycle status denies regardless of scene flags;
// otherwise the capability must be present in the scene's flag set.
func Allowed(s Scene, status BoardStatus, cap Capability) bool {
	if !Actionable(status) {
		return false
	}
	return s.Has(cap)
}

// Visibility describes who may see vote data in the current scene.
type Visibility int

const (
	// VotesHidden: nobody sees vote data.
	VotesHidden Visibility = iota
	// VotesOwnOnly: each voter sees only their own counts.
	VotesOwnOnly
	// VotesRevealed: everyone sees aggregate counts.
	VotesRevealed
)

// VoteVisibility is the single source of truth for the blind-voting rule:
// votes stay private to the voter until a scene with show_votes reveals
// them. Every vote-related call site (vote route, clear-votes route,
// broadcast composer) consults this instead of re-deriving the branch.
func VoteVisibility(s Scene) Visibility {
	if s.Has(ShowVotes) {
		return VotesRevealed
	}
	if s.Has(AllowVoting) {
		return VotesOwnOnly
	}
	return VotesHidden
}
