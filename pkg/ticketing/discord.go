package ticketing

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// memberAllow is the permission set granted to ticket members.
const memberAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages

// roleAllow additionally grants history so support can read the backlog.
const roleAllow = memberAllow | discordgo.PermissionReadMessageHistory

// discordChannelProvider implements ChannelProvider on a discord session.
type discordChannelProvider struct {
	s *discordgo.Session
}

// NewDiscordChannelProvider wraps a discord session as a ChannelProvider.
func NewDiscordChannelProvider(s *discordgo.Session) ChannelProvider {
	return &discordChannelProvider{s: s}
}

func (p *discordChannelProvider) CreateTicketChannel(_ context.Context, guildID, name, topic, categoryID string, policy AccessPolicy) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// Deny @everyone from seeing the ticket.
		{
			ID:   policy.EveryoneRoleID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionAll,
		},
	}

	for _, memberID := range policy.MemberIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    memberID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: memberAllow,
			Deny:  discordgo.PermissionMentionEveryone,
		})
	}

	for _, roleID := range policy.RoleIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    roleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: roleAllow,
			Deny:  discordgo.PermissionMentionEveryone,
		})
	}

	channel, err := p.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                topic,
		PermissionOverwrites: overwrites,
		ParentID:             categoryID,
	})
	if err != nil {
		return "", fmt.Errorf("error creating ticket channel: %w", err)
	}
	return channel.ID, nil
}

func (p *discordChannelProvider) SetParentCategory(_ context.Context, channelID, categoryID string) error {
	if _, err := p.s.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		ParentID: categoryID,
	}); err != nil {
		return fmt.Errorf("error re-parenting channel: %w", err)
	}
	return nil
}

func (p *discordChannelProvider) GrantMemberAccess(_ context.Context, channelID, userID string) error {
	err := p.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, roleAllow, discordgo.PermissionMentionEveryone)
	if err != nil {
		return fmt.Errorf("error granting channel access: %w", err)
	}
	return nil
}

func (p *discordChannelProvider) RevokeMemberAccess(_ context.Context, channelID, userID string) error {
	if err := p.s.ChannelPermissionDelete(channelID, userID); err != nil {
		return fmt.Errorf("error revoking channel access: %w", err)
	}
	return nil
}

func (p *discordChannelProvider) DeleteChannel(_ context.Context, channelID, reason string) error {
	if _, err := p.s.ChannelDelete(channelID, discordgo.WithAuditLogReason(reason)); err != nil {
		return fmt.Errorf("error deleting channel: %w", err)
	}
	return nil
}

func (p *discordChannelProvider) CategoryExists(_ context.Context, categoryID string) (bool, error) {
	channel, err := p.s.Channel(categoryID)
	if err != nil {
		restErr := new(discordgo.RESTError)
		if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
			return false, nil
		}
		return false, fmt.Errorf("error resolving category: %w", err)
	}
	return channel.Type == discordgo.ChannelTypeGuildCategory, nil
}
