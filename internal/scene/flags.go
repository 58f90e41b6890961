// Package scene defines the capability-flag catalog for board scenes and
// evaluates whether an action is permitted in the board's current phase.
package scene

// Capability is one entry of the closed flag catalog. Flags have no
// identity of their own; they only exist as membership in a scene's set.
type Capability string

const (
	AllowAddCards        Capability = "allow_add_cards"
	AllowEditCards       Capability = "allow_edit_cards"
	AllowMoveCards       Capability = "allow_move_cards"
	AllowGroupCards      Capability = "allow_group_cards"
	AllowObscureCards    Capability = "allow_obscure_cards"
	AllowVoting          Capability = "allow_voting"
	ShowVotes            Capability = "show_votes"
	AllowComments        Capability = "allow_comments"
	ShowComments         Capability = "show_comments"
	AllowHealthResponses Capability = "allow_health_responses"
)

// Mode is a scene's layout/behavior template.
type Mode string

const (
	ModeColumns Mode = "columns"
	ModePresent Mode = "present"
	ModeReview  Mode = "review"
	ModeHealth  Mode = "health"
)

var allCapabilities = map[Capability]struct{}{
	AllowAddCards:        {},
	AllowEditCards:       {},
	AllowMoveCards:       {},
	AllowGroupCards:      {},
	AllowObscureCards:    {},
	AllowVoting:          {},
	ShowVotes:            {},
	AllowComments:        {},
	ShowComments:         {},
	AllowHealthResponses: {},
}

var modeDefaults = map[Mode][]Capability{
	ModeColumns: {AllowAddCards, AllowEditCards, AllowMoveCards, AllowGroupCards, AllowComments},
	ModePresent: {ShowVotes, AllowComments, ShowComments},
	ModeReview:  {ShowVotes, ShowComments},
	ModeHealth:  {AllowHealthResponses},
}

// Valid reports whether name is part of the catalog.
func Valid(name string) bool {
	_, ok := allCapabilities[Capability(name)]
	return ok
}

// Capabilities returns the full catalog.
func Capabilities() []Capability {
	caps := make([]Capability, 0, len(allCapabilities))
	for c := range allCapabilities {
		caps = append(caps, c)
	}
	return caps
}

// DefaultFlags returns the flag set assigned to a new scene of the given
// mode. Unknown modes yield an empty set.
func DefaultFlags(mode Mode) []Capability {
	defaults, ok := modeDefaults[mode]
	if !ok {
		return nil
	}
	out := make([]Capability, len(defaults))
	copy(out, defaults)
	return out
}
