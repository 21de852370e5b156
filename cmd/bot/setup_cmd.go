package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/wardenhq/warden/pkg/dataaccess"
	"github.com/wardenhq/warden/pkg/entities"
)

const (
	// setupCmdName is the command for all configuration commands.
	setupCmdName = "setup"

	// ticketingCmdName is the sub command configuring ticketing.
	ticketingCmdName = "ticketing"

	// panelChannelOptName is the channel the open-ticket panel is posted to.
	panelChannelOptName = "panel-channel"

	// openCategoryOptName is the category new tickets are created under.
	openCategoryOptName = "open-category"

	// archiveCategoryOptName is the category closed tickets are moved to.
	archiveCategoryOptName = "archive-category"

	// supportRoleOptName is the role that handles tickets.
	supportRoleOptName = "support-role"

	// extraRolesOptName is an optional comma-separated list of further
	// support role IDs.
	extraRolesOptName = "extra-support-roles"

	// logChannelOptName is the optional channel for audit output.
	logChannelOptName = "log-channel"
)

var (
	// setupCmd is the command for all configuration commands.
	setupCmd = &discordgo.ApplicationCommand{
		Name:        setupCmdName,
		Type:        discordgo.ChatApplicationCommand,
		Description: "This is the command for all configuration commands.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        ticketingCmdName,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "This sets up ticketing for your server, replacing any previous configuration.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        panelChannelOptName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the channel you want the open-ticket panel in.",
						Required:    true,
					},
					{
						Name:        openCategoryOptName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the category new tickets are created under.",
						Required:    true,
					},
					{
						Name:        archiveCategoryOptName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the category closed tickets are moved to.",
						Required:    true,
					},
					{
						Name:        supportRoleOptName,
						Type:        discordgo.ApplicationCommandOptionRole,
						Description: "This is the role you want to handle tickets.",
						Required:    true,
					},
					{
						Name:        extraRolesOptName,
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "Additional support role IDs, comma-separated.",
					},
					{
						Name:        logChannelOptName,
						Type:        discordgo.ApplicationCommandOptionChannel,
						Description: "This is the channel ticket audit entries are sent to.",
					},
				},
			},
		},
	}
)

func setupCmdController(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		if err := respondEphemeral(a, i, "You must be an administrator to use this command"); err != nil {
			return nil, fmt.Errorf("error responding to interaction: %w", err)
		}
		return nil, nil
	}

	// Extract the sub command.
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case ticketingCmdName:
		return ticketingSetupHandler, nil
	default:
		return nil, fmt.Errorf("unhandled sub command %s", subCmd)
	}
}

// ticketingSetupHandler replaces the guild's ticketing settings wholesale.
// There is no partial update; every setup call rewrites the whole record.
func ticketingSetupHandler(a IApp, i *discordgo.InteractionCreate) error {
	opts := subOptionMap(i.ApplicationCommandData().Options[0].Options)

	panelChannel := opts[panelChannelOptName].ChannelValue(a.Session())
	openCategory := opts[openCategoryOptName].ChannelValue(a.Session())
	archiveCategory := opts[archiveCategoryOptName].ChannelValue(a.Session())
	supportRole := opts[supportRoleOptName].RoleValue(a.Session(), i.GuildID)

	// Ensure the panel channel is a text channel.
	if panelChannel.Type != discordgo.ChannelTypeGuildText {
		return respondEphemeral(a, i, "You must provide a text channel for the ticket panel.")
	}

	// Ensure both categories really are categories.
	if openCategory.Type != discordgo.ChannelTypeGuildCategory ||
		archiveCategory.Type != discordgo.ChannelTypeGuildCategory {
		return respondEphemeral(a, i, "The open and archive options must both be categories.")
	}

	supportRoleIDs := []string{supportRole.ID}
	if extra, ok := opts[extraRolesOptName]; ok {
		for _, id := range strings.Split(extra.StringValue(), ",") {
			if id = strings.TrimSpace(id); id != "" && id != supportRole.ID {
				supportRoleIDs = append(supportRoleIDs, id)
			}
		}
	}

	settings := &entities.GuildTicketSettings{
		GuildID:           i.GuildID,
		OpenCategoryID:    openCategory.ID,
		ArchiveCategoryID: archiveCategory.ID,
		SupportRoleIDs:    supportRoleIDs,
		PanelChannelID:    panelChannel.ID,
	}

	if logChannel, ok := opts[logChannelOptName]; ok {
		settings.LogChannelID = logChannel.ChannelValue(a.Session()).ID
	}

	// Reuse the existing panel message if it still exists in the chosen
	// channel; otherwise post a fresh one.
	previous, err := a.SettingsDal().GetSettings(context.Background(), i.GuildID)
	if err != nil && !errors.Is(err, dataaccess.ErrNotFound) {
		return fmt.Errorf("error getting settings: %w", err)
	}

	if previous != nil && previous.PanelChannelID == panelChannel.ID && previous.PanelMessageID != "" {
		msg, err := a.Session().ChannelMessage(panelChannel.ID, previous.PanelMessageID)
		if err != nil {
			restErr := new(discordgo.RESTError)
			if !errors.As(err, &restErr) || restErr.Message == nil || restErr.Message.Code != discordgo.ErrCodeUnknownMessage {
				return fmt.Errorf("error getting panel message: %w", err)
			}
		} else if msg != nil {
			settings.PanelMessageID = msg.ID
		}
	}

	if settings.PanelMessageID == "" {
		msg, err := sendTicketPanelMessage(a, panelChannel.ID)
		if err != nil {
			return fmt.Errorf("error sending panel message: %w", err)
		}
		settings.PanelMessageID = msg.ID
	}

	// Save the settings.
	if err := a.SettingsDal().SetSettings(context.Background(), settings); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}

	// Respond to the interaction saying that ticketing has been configured.
	if err := respondEphemeral(a, i, fmt.Sprintf("Ticketing has been configured. The panel is in <#%s>.", panelChannel.ID)); err != nil {
		return fmt.Errorf("error responding to interaction: %w", err)
	}

	return nil
}
