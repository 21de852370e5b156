package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenhq/warden/cmd/bot/monitoring"
	"github.com/wardenhq/warden/pkg/entities"
	"github.com/wardenhq/warden/pkg/logging"
	"github.com/wardenhq/warden/pkg/ticketing"
)

const (
	// openTicketButtonID is the ID for the open ticket button on the panel.
	openTicketButtonID = "open_ticket_button"

	// claimTicketButtonID is the ID for the claim ticket button.
	claimTicketButtonID = "claim_ticket_button"

	// closeTicketButtonID is the ID for the close ticket button.
	closeTicketButtonID = "close_ticket_button"

	// deleteTicketButtonID is the ID for the delete ticket button.
	deleteTicketButtonID = "delete_ticket_button"

	// openTicketModalID is the ID for the issue-description form.
	openTicketModalID = "open_ticket_modal"

	// issueInputID is the ID of the free-text field on the form.
	issueInputID = "issue_description"
)

const (
	// ticketEmoji is the emoji on the panel button. (Envelope with arrow)
	ticketEmoji = "\U0001F4E9"

	// claimEmoji is the emoji on the claim button. (Ticket)
	claimEmoji = "\U0001F3AB"

	// closeEmoji is the emoji on the close button. (Padlock)
	closeEmoji = "\U0001F510"

	// deleteEmoji is the emoji on the delete button. (Cross)
	deleteEmoji = "❌"
)

const (
	// ticketCmdName is the command for managing ticket participants.
	ticketCmdName = "ticket"

	// addCmdName is the sub command for adding a participant.
	addCmdName = "add"

	// removeCmdName is the sub command for removing a participant.
	removeCmdName = "remove"

	// userOptName is the user option on both sub commands.
	userOptName = "user"
)

var (
	// ticketCmd is the command for managing the ticket the channel belongs to.
	ticketCmd = &discordgo.ApplicationCommand{
		Name:        ticketCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for managing the ticket in this channel.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        addCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This adds a user to the ticket in this channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "The user to add to the ticket.",
						Required:    true,
					},
				},
			},
			{
				Name:        removeCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This removes a user from the ticket in this channel.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        userOptName,
						Type:        discordgo.ApplicationCommandOptionUser,
						Description: "The user to remove from the ticket.",
						Required:    true,
					},
				},
			},
		},
	}

	// controlButtons is the control surface attached to the welcome
	// message of every ticket channel. There is no reopen button; closed
	// tickets stay closed.
	controlButtons = discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    fmt.Sprintf("%s Claim", claimEmoji),
				Style:    discordgo.PrimaryButton,
				CustomID: claimTicketButtonID,
			},
			discordgo.Button{
				Label:    fmt.Sprintf("%s Close", closeEmoji),
				Style:    discordgo.SecondaryButton,
				CustomID: closeTicketButtonID,
			},
			discordgo.Button{
				Label:    fmt.Sprintf("%s Delete", deleteEmoji),
				Style:    discordgo.DangerButton,
				CustomID: deleteTicketButtonID,
			},
		},
	}
)

// sendTicketPanelMessage posts the open-ticket panel to the given channel.
func sendTicketPanelMessage(a IApp, channelID string) (*discordgo.Message, error) {
	const messageText = `How can we help?
Welcome to our tickets channel. If you have any questions or inquiries, please click on the button below to contact the staff by opening a ticket!`

	message := discordgo.MessageSend{
		Content:         messageText,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    fmt.Sprintf("%s Open Ticket", ticketEmoji),
						Style:    discordgo.PrimaryButton,
						CustomID: openTicketButtonID,
					},
				},
			},
		},
	}

	msg, err := a.Session().ChannelMessageSendComplex(channelID, &message)
	if err != nil {
		return nil, fmt.Errorf("error sending message: %w", err)
	}

	return msg, nil
}

// openTicketRequestedHandler shows the issue-description form when the
// panel button is pressed.
func openTicketRequestedHandler(a IApp, i *discordgo.InteractionCreate) error {
	err := a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: openTicketModalID,
			Title:    "Open a ticket",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    issueInputID,
							Label:       "How can we help?",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Describe your issue",
							Required:    true,
							MaxLength:   1000,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// openTicketSubmittedHandler creates the ticket from the submitted form.
func openTicketSubmittedHandler(a IApp, i *discordgo.InteractionCreate) error {
	data := i.ModalSubmitData()
	issue := data.Components[0].(*discordgo.ActionsRow).Components[0].(*discordgo.TextInput).Value

	ticket, err := a.Manager().Create(context.Background(), ticketing.CreateRequest{
		GuildID:       i.GuildID,
		CreatorID:     i.Member.User.ID,
		CreatorHandle: i.Member.User.Username,
		Issue:         issue,
	})
	observeTransition("create", err)
	if err != nil {
		return respondLifecycleError(a, i, err)
	}

	// The welcome message carries the issue description and the control
	// surface for the lifetime of the ticket.
	if _, err := a.Session().ChannelMessageSendComplex(ticket.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "How can we help?",
				Description: issue,
				Color:       0x2ecc71,
				Fields: []*discordgo.MessageEmbedField{
					{
						Name:   "Opened by",
						Value:  fmt.Sprintf("<@%s>", ticket.CreatorID),
						Inline: true,
					},
				},
			},
		},
		Components: []discordgo.MessageComponent{controlButtons},
	}); err != nil {
		a.Log().Error("Error sending ticket welcome message",
			slog.String(logging.KeyChannel, ticket.ChannelID),
			slog.String(logging.KeyError, err.Error()),
		)
	}

	// Respond to the interaction saying that the ticket has been created
	// in channel <channel>.
	err = a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Ticket Created",
					Description: fmt.Sprintf("<@%s>, your ticket has been created.", ticket.CreatorID),
					Color:       0x2ecc71,
					Fields: []*discordgo.MessageEmbedField{
						{
							Name:   "Ticket Channel",
							Value:  fmt.Sprintf("<#%s>", ticket.ChannelID),
							Inline: true,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// controlButtonHandler routes a control-surface press to the matching
// lifecycle transition. The switch is exhaustive over ControlAction.
func controlButtonHandler(action ticketing.ControlAction) commandProcessor {
	return func(a IApp, i *discordgo.InteractionCreate) error {
		ctx := context.Background()
		actorID := i.Member.User.ID

		var err error
		var reply string
		switch action {
		case ticketing.ActionClaim:
			_, err = a.Manager().Claim(ctx, i.ChannelID, actorID, i.Member.Roles)
			reply = fmt.Sprintf("<@%s>, you have claimed this ticket.", actorID)
		case ticketing.ActionClose:
			_, err = a.Manager().Close(ctx, i.ChannelID, actorID)
			reply = fmt.Sprintf("<@%s> closed this ticket.", actorID)
		case ticketing.ActionDelete:
			err = a.Manager().Delete(ctx, i.ChannelID, actorID, i.Member.Roles)
			reply = "This ticket will be deleted in a few seconds."
		default:
			return fmt.Errorf("unhandled control action %s", action)
		}

		observeTransition(action.String(), err)
		if err != nil {
			return respondLifecycleError(a, i, err)
		}

		err = a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: reply,
			},
		})
		if err != nil {
			return fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil
	}
}

// ticketCmdController routes the participant sub commands.
func ticketCmdController(_ IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case addCmdName:
		return addParticipantHandler, nil
	case removeCmdName:
		return removeParticipantHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

func addParticipantHandler(a IApp, i *discordgo.InteractionCreate) error {
	target := i.ApplicationCommandData().Options[0].Options[0].UserValue(a.Session())

	ticket, err := a.Manager().AddParticipant(context.Background(), i.ChannelID, i.Member.User.ID, target.ID)
	observeTransition("add_participant", err)
	if err != nil {
		return respondLifecycleError(a, i, err)
	}

	return respondParticipants(a, i, fmt.Sprintf("<@%s> has been added to the ticket.", target.ID), ticket)
}

func removeParticipantHandler(a IApp, i *discordgo.InteractionCreate) error {
	target := i.ApplicationCommandData().Options[0].Options[0].UserValue(a.Session())

	ticket, err := a.Manager().RemoveParticipant(context.Background(), i.ChannelID, i.Member.User.ID, target.ID)
	observeTransition("remove_participant", err)
	if err != nil {
		return respondLifecycleError(a, i, err)
	}

	return respondParticipants(a, i, fmt.Sprintf("<@%s> has been removed from the ticket.", target.ID), ticket)
}

func respondParticipants(a IApp, i *discordgo.InteractionCreate, content string, ticket *entities.Ticket) error {
	err := a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("%s This ticket now has %d participant(s).", content, len(ticket.Participants)),
		},
	})
	if err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}
	return nil
}

// observeTransition records the outcome of a lifecycle transition.
func observeTransition(transition string, err error) {
	outcome := "ok"
	if err != nil {
		switch ticketing.KindOf(err) {
		case ticketing.KindValidation:
			outcome = "validation"
		case ticketing.KindPermission:
			outcome = "permission"
		default:
			outcome = "error"
		}
	}
	monitoring.TicketTransitions.WithLabelValues(transition, outcome).Inc()
}
