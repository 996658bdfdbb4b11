package bot

import "github.com/bwmarrin/discordgo"

var manageGuildPermission int64 = discordgo.PermissionManageServer

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func intOption(name, description string, required bool, min, max float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    &min,
		MaxValue:    max,
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         "level",
			Description:  "Show your level or the level of another member",
			DMPermission: &dmPermission,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Afficher ton niveau ou celui d'un membre",
				discordgo.EnglishUS: "Show your level or the level of another member",
				discordgo.SpanishES: "Mostrar tu nivel o el de otro miembro",
			},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to look up",
					Required:    false,
				},
			},
		},
		{
			Name:         "leveling",
			Description:  "Configure leveling",
			DMPermission: &dmPermission,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Configurer les niveaux",
				discordgo.EnglishUS: "Configure leveling",
				discordgo.SpanishES: "Configurar niveles",
			},
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("list", "Show the leveling settings"),
				subcommand("set_per_message", "Set the XP granted per message",
					intOption("initial_xp", "XP granted for every message", true, 0, 100),
					intOption("extra_xp", "Bonus XP per trigger length", true, 0, 100),
					intOption("extra_xp_trigger", "Characters needed for one bonus", true, 1, 4000),
				),
				subcommand("multiplier", "Set the flat XP multiplier",
					intOption("multiplier", "Multiplier factor", true, 1, 100),
				),
				subcommand("add_multiplier", "Add a seasonal multiplier",
					stringOption("name", "Multiplier name", true),
					intOption("multiplier", "Multiplier factor", true, 1, 100),
					stringOption("start_date", "Start date as MM-DD", true),
					stringOption("end_date", "End date as MM-DD", true),
				),
				subcommand("change_multiplier_name", "Rename a multiplier",
					stringOption("old_name", "Current name", true),
					stringOption("new_name", "New name", true),
				),
				subcommand("change_multiplier_multiplier", "Change a multiplier factor",
					stringOption("name", "Multiplier name", true),
					intOption("multiplier", "New factor", true, 1, 100),
				),
				subcommand("change_multiplier_start_date", "Change a multiplier start date",
					stringOption("name", "Multiplier name", true),
					stringOption("start_date", "Start date as MM-DD", true),
				),
				subcommand("change_multiplier_end_date", "Change a multiplier end date",
					stringOption("name", "Multiplier name", true),
					stringOption("end_date", "End date as MM-DD", true),
				),
				subcommand("remove_multiplier", "Remove a multiplier",
					stringOption("name", "Multiplier name", true),
				),
				subcommand("get_multiplier", "Show a multiplier",
					stringOption("name", "Multiplier name", true),
				),
				subcommand("set_xp_per_level", "Set the XP needed per level",
					intOption("xp", "XP per level", true, 1, 1000000),
				),
				subcommand("set_reward", "Give a role when a level is reached",
					intOption("level", "Level", true, 0, 100000),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Reward role",
						Required:    true,
					},
				),
				subcommand("remove_reward", "Remove a level reward",
					intOption("level", "Level", true, 0, 100000),
				),
				subcommand("set_icon", "Set your leveling icon",
					stringOption("icon", "A single emoji", true),
				),
				subcommand("leaderboard", "Show the XP leaderboard",
					intOption("page", "Page number", false, 1, 100000),
				),
			},
		},
		{
			Name:                     "settings",
			Description:              "Configure server settings",
			DMPermission:             &dmPermission,
			DefaultMemberPermissions: &manageGuildPermission,
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.French:    "Configurer le serveur",
				discordgo.EnglishUS: "Configure server settings",
				discordgo.SpanishES: "Configurar el servidor",
			},
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("logging_channel", "Channel for the admin log",
					&discordgo.ApplicationCommandOption{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Leave empty to clear",
						Required:     false,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				),
				subcommand("leveling_channel", "Channel for level-up notices",
					&discordgo.ApplicationCommandOption{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Leave empty to clear",
						Required:     false,
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					},
				),
				subcommand("timezone", "Time zone used for multiplier dates",
					stringOption("zone", "IANA zone such as Europe/Paris", true),
				),
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
