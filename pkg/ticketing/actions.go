package ticketing

import "fmt"

// ControlAction is a ticket transition requested through the control
// surface. Keeping it an enum (rather than raw button IDs) gives the
// presenter an exhaustive switch; there is deliberately no reopen variant.
type ControlAction int

const (
	// ActionClaim assigns the ticket to the acting support member.
	ActionClaim ControlAction = iota

	// ActionClose archives the ticket.
	ActionClose

	// ActionDelete removes the ticket record and its channel.
	ActionDelete
)

// String returns the action name used in audit output.
func (a ControlAction) String() string {
	switch a {
	case ActionClaim:
		return "claim"
	case ActionClose:
		return "close"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("unknown_action_(%d)", int(a))
}
