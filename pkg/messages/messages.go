package messages

const (
	// ErrUserErrorProcessing is the generic failure message shown to users.
	ErrUserErrorProcessing = "Something went wrong processing your request, please try again later."

	// ErrNotTicketChannel is shown when a ticket command is used outside a ticket channel.
	ErrNotTicketChannel = "This channel is not a ticket channel."

	// ErrTicketingNotConfigured is shown when a guild has no ticketing settings.
	ErrTicketingNotConfigured = "Ticketing has not been set up for this server yet. Ask an administrator to run `/setup ticketing`."
)
