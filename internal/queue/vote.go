package queue

import "math"

type VoteKind int

const (
	VoteNext VoteKind = iota
	VotePrevious
	VoteReplay
	VotePause
	VoteLoop
)

var voteKinds = []VoteKind{VoteNext, VotePrevious, VoteReplay, VotePause, VoteLoop}

func (k VoteKind) String() string {
	switch k {
	case VoteNext:
		return "next"
	case VotePrevious:
		return "previous"
	case VoteReplay:
		return "replay"
	case VotePause:
		return "pause"
	case VoteLoop:
		return "loop"
	default:
		return "unknown"
	}
}

type VoteResult int

const (
	VoteRecorded VoteResult = iota
	VoteExecuted
	VoteAlreadyVoted
	VoteNoPermission
	// VoteNotStarted means the current track has not begun streaming, so
	// there is nothing to pause or resume yet.
	VoteNotStarted
)

func (r VoteResult) String() string {
	switch r {
	case VoteRecorded:
		return "recorded"
	case VoteExecuted:
		return "executed"
	case VoteAlreadyVoted:
		return "already voted"
	case VoteNoPermission:
		return "no permission"
	case VoteNotStarted:
		return "not started"
	default:
		return "unknown"
	}
}

// Voter is a participant as seen at the moment of voting.
type Voter struct {
	ID        string
	Bot       bool
	Moderator bool
}

// VoteGroup is the set of members backing one pending action.
type VoteGroup struct {
	supporters map[string]struct{}
}

func NewVoteGroup() *VoteGroup {
	return &VoteGroup{supporters: make(map[string]struct{})}
}

func (g *VoteGroup) Has(id string) bool {
	_, ok := g.supporters[id]
	return ok
}

// Add records id and reports whether it was new.
func (g *VoteGroup) Add(id string) bool {
	if g.Has(id) {
		return false
	}
	g.supporters[id] = struct{}{}
	return true
}

func (g *VoteGroup) Remove(id string) bool {
	if !g.Has(id) {
		return false
	}
	delete(g.supporters, id)
	return true
}

func (g *VoteGroup) Len() int {
	return len(g.supporters)
}

func (g *VoteGroup) Clear() {
	clear(g.supporters)
}

// Passes reports whether supporters strictly outnumber the share of
// liveMembers given by percentage.
func (g *VoteGroup) Passes(liveMembers int, percentage float64) bool {
	return float64(liveMembers)*percentage < float64(g.Len())
}

// Required is the smallest supporter count that passes.
func Required(liveMembers int, percentage float64) int {
	return int(math.Floor(float64(liveMembers)*percentage)) + 1
}
