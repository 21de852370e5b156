package ticketing

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle error so the presenter can decide how to
// surface it without inspecting message text.
type Kind int

const (
	// KindValidation is a request that cannot proceed as asked
	// (duplicate open ticket, not a ticket channel, already a
	// participant). No retry, no state change.
	KindValidation Kind = iota

	// KindPermission is an actor lacking the authority for the
	// transition. No state change.
	KindPermission

	// KindStore is a store failure that survived the retry loop.
	KindStore

	// KindProvider is a channel/permission provider failure. Not retried.
	KindProvider
)

// Error is a lifecycle error with a user-presentable message.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// UserMessage returns the message safe to show to the requesting user.
func (e *Error) UserMessage() string { return e.msg }

var (
	// ErrNotConfigured is returned when a guild has no ticketing settings.
	ErrNotConfigured = &Error{kind: KindValidation, msg: "Ticketing has not been set up for this server."}

	// ErrOpenCategoryMissing is returned when the configured open category
	// no longer exists.
	ErrOpenCategoryMissing = &Error{kind: KindValidation, msg: "The configured ticket category no longer exists. Ask an administrator to re-run setup."}

	// ErrOpenTicketExists is returned when the creator already has an open
	// ticket in the guild.
	ErrOpenTicketExists = &Error{kind: KindValidation, msg: "You already have an open ticket in this server."}

	// ErrNotTicketChannel is returned when no ticket record exists for the
	// channel.
	ErrNotTicketChannel = &Error{kind: KindValidation, msg: "This channel is not a ticket channel."}

	// ErrAlreadyParticipant is returned when adding a user that already
	// has visibility into the ticket.
	ErrAlreadyParticipant = &Error{kind: KindValidation, msg: "That user is already a participant of this ticket."}

	// ErrNotParticipant is returned when removing a user that is not a
	// participant.
	ErrNotParticipant = &Error{kind: KindValidation, msg: "That user is not a participant of this ticket."}

	// ErrMissingSupportRole is returned when the actor lacks a support
	// role for a transition that requires one.
	ErrMissingSupportRole = &Error{kind: KindPermission, msg: "You need a support role to do that."}

	// ErrNotClaimantOrSupport is returned when a delete is attempted by
	// someone who is neither support nor the recorded claimant.
	ErrNotClaimantOrSupport = &Error{kind: KindPermission, msg: "Only a support member or the claimant can delete a ticket."}

	// ErrCannotRemoveCreator is returned when attempting to remove the
	// ticket creator from the participant set.
	ErrCannotRemoveCreator = &Error{kind: KindPermission, msg: "The ticket creator cannot be removed from their own ticket."}
)

// storeError wraps a store failure that survived the retry loop.
func storeError(err error) *Error {
	return &Error{kind: KindStore, msg: "Something went wrong saving your request, please try again later.", cause: err}
}

// providerError wraps a channel/permission provider failure.
func providerError(err error) *Error {
	return &Error{kind: KindProvider, msg: "Discord rejected the channel operation, please try again later.", cause: err}
}

// KindOf returns the kind of a lifecycle error, or KindStore for anything
// unrecognised so unknown failures surface as generic ones.
func KindOf(err error) Kind {
	e := new(Error)
	if errors.As(err, &e) {
		return e.kind
	}
	return KindStore
}
