package main

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenhq/warden/pkg/messages"
	"github.com/wardenhq/warden/pkg/ticketing"
)

func respondEphemeralError(a IApp, i *discordgo.InteractionCreate) error {
	return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
}

func respondEphemeral(a IApp, i *discordgo.InteractionCreate, content string) error {
	return a.Session().InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// respondLifecycleError maps a lifecycle error to the user-visible reply.
// Validation and permission refusals carry their own message; store and
// provider failures get the generic one and the caller logs the cause.
func respondLifecycleError(a IApp, i *discordgo.InteractionCreate, err error) error {
	lcErr := new(ticketing.Error)
	if errors.As(err, &lcErr) {
		return respondEphemeral(a, i, lcErr.UserMessage())
	}
	return respondEphemeralError(a, i)
}

// subOptionMap indexes a subcommand's options by name.
func subOptionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}
