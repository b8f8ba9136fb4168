package accounting

// Transition classifies a voice-state change by its old and new channel.
type Transition int

const (
	// NoOp covers none→none and same-channel updates (mute, deafen, stream).
	NoOp Transition = iota
	Joined
	Left
	// Moved is a switch between two channels; an open session continues.
	Moved
)

// DeriveTransition maps old/new channel ids ("" meaning no channel) to a
// Transition.
func DeriveTransition(oldChannelID, newChannelID string) Transition {
	switch {
	case oldChannelID == "" && newChannelID != "":
		return Joined
	case oldChannelID != "" && newChannelID == "":
		return Left
	case oldChannelID != "" && oldChannelID != newChannelID:
		return Moved
	default:
		return NoOp
	}
}

func (t Transition) String() string {
	switch t {
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Moved:
		return "moved"
	default:
		return "noop"
	}
}
