package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	core "levelbot/internal/leveling"

	"github.com/bwmarrin/discordgo"
)

var errNotReady = errors.New("session not ready")

// sessionGateway exposes the session as the engine's role capability and the
// leveling module's channel sink.
type sessionGateway struct {
	session *discordgo.Session
}

func (g *sessionGateway) selfID() string {
	if g.session == nil || g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

func (g *sessionGateway) CanManageRoles(ctx context.Context, guildID string) (bool, error) {
	selfID := g.selfID()
	if selfID == "" {
		return false, errNotReady
	}
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return false, fmt.Errorf("guild %s: %w", guildID, err)
	}
	member, err := g.session.State.Member(guildID, selfID)
	if err != nil || member == nil {
		member, err = g.session.GuildMember(guildID, selfID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("self member: %w", err)
		}
	}
	return hasGuildPermission(guild, member, discordgo.PermissionManageRoles), nil
}

func (g *sessionGateway) AssignRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapRoleError(g.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (g *sessionGateway) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapRoleError(g.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (g *sessionGateway) CanSend(channelID string) bool {
	selfID := g.selfID()
	if selfID == "" || channelID == "" {
		return false
	}
	perms, err := g.session.State.UserChannelPermissions(selfID, channelID)
	if err != nil {
		return false
	}
	return canSendWith(perms)
}

// SendTemporary posts content and deletes it after ttl. A non-positive ttl keeps the message.
func (g *sessionGateway) SendTemporary(channelID, content string, ttl time.Duration) error {
	msg, err := g.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return err
	}
	if ttl <= 0 || msg == nil {
		return nil
	}
	time.AfterFunc(ttl, func() {
		_ = g.session.ChannelMessageDelete(channelID, msg.ID)
	})
	return nil
}

func canSendWith(perms int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	required := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	return perms&required == required
}

func hasGuildPermission(guild *discordgo.Guild, member *discordgo.Member, permission int64) bool {
	if guild == nil || member == nil {
		return false
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return true
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	perms := int64(0)
	if everyone := roleMap[guild.ID]; everyone != nil {
		perms |= everyone.Permissions
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&permission == permission
}

func mapRoleError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %v", core.ErrPermissionDenied, err)
		}
	}
	return err
}
