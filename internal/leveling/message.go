package leveling

import (
	"context"

	"go.uber.org/zap"
)

type Message struct {
	GuildID string
	UserID  string
	Bot     bool
	Content string
	Roles   []string
	CanSend bool
}

type Outcome struct {
	Qualified   bool
	Granted     int64
	TotalXP     int64
	BeforeLevel int
	AfterLevel  int
	Roles       RoleChanges
}

func (o Outcome) LeveledUp() bool {
	return o.AfterLevel != o.BeforeLevel
}

// ProcessMessage grants the per-message XP and, when the bot may post in the
// channel, reconciles reward roles. Level crossing is derived from the total
// returned by the atomic increment.
func (e *Engine) ProcessMessage(ctx context.Context, msg Message) (Outcome, error) {
	if msg.Bot || msg.GuildID == "" || msg.UserID == "" {
		return Outcome{}, nil
	}

	curve, err := e.Settings(ctx, msg.GuildID)
	if err != nil {
		return Outcome{}, err
	}
	amount := MessageXP(curve.InitialXP, curve.ExtraXP, curve.ExtraXPTrigger, msg.Content)

	total, err := e.AddXP(ctx, msg.GuildID, msg.UserID, amount)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		Qualified:   true,
		Granted:     amount,
		TotalXP:     total,
		BeforeLevel: LevelForXP(total-amount, curve.XPPerLevel),
		AfterLevel:  LevelForXP(total, curve.XPPerLevel),
	}
	e.logger.Debug("xp granted",
		zap.String("guild_id", msg.GuildID),
		zap.String("user_id", msg.UserID),
		zap.Int64("amount", amount),
		zap.Int64("total", total),
		zap.Int("level", outcome.AfterLevel),
	)

	if !msg.CanSend {
		return outcome, nil
	}

	changes, err := e.SyncRewardRoles(ctx, Member{GuildID: msg.GuildID, UserID: msg.UserID, Roles: msg.Roles}, outcome.AfterLevel)
	outcome.Roles = changes
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}
