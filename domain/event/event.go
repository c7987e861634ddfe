package event

import (
	"conference-bot/domain"

	"github.com/samber/lo"
)

type Kind string

const (
	KindCallStatus Kind = "callStatus"
	KindCallEnded  Kind = "callEnded"
)

type Reason string

// ReasonDroppedRemotely signals that the bot itself was removed from the
// call by the far end.
const ReasonDroppedRemotely Reason = "droppedRemotely"

// ParticipantState is the media-path state of one call member as reported
// by a status event.
type ParticipantState struct {
	UserID      string `json:"userId"`
	Joined      bool   `json:"joined"`
	Established bool   `json:"established"`
}

// CallEvent is one element of the platform's event feed. Kind tells whether
// it is a status update or the end of the call.
type CallEvent struct {
	Kind         Kind               `json:"kind"`
	CallID       domain.CallID      `json:"callId"`
	Reason       Reason             `json:"reason,omitempty"`
	Participants []ParticipantState `json:"participants,omitempty"`
}

// EstablishedCount counts participants with an established media path.
func (e CallEvent) EstablishedCount() int {
	return lo.CountBy(e.Participants, func(p ParticipantState) bool {
		return p.Established
	})
}
