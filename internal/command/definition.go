package command

import "github.com/bwmarrin/discordgo"

// SlashProvider is implemented by commands that register as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}
