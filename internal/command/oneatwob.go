package command

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/warden/internal/minigame"
	"github.com/keshon/warden/internal/platform"
	"github.com/keshon/warden/pkg/cmd"
)

// OneATwoB is /one_a_two_b with the start and guess subcommands.
type OneATwoB struct {
	arcade    *minigame.Arcade
	localizer platform.Localizer
}

func NewOneATwoB(arcade *minigame.Arcade, localizer platform.Localizer) *OneATwoB {
	return &OneATwoB{arcade: arcade, localizer: localizer}
}

func (o *OneATwoB) Name() string        { return "one_a_two_b" }
func (o *OneATwoB) Description() string { return "Play 1A2B, the number guessing game" }

func (o *OneATwoB) Run(ctx context.Context, inv *cmd.Invocation) error {
	in, err := interactionOf(inv)
	if err != nil {
		return err
	}

	switch in.Subcommand {
	case "start":
		return o.start(ctx, in)
	case "guess":
		return o.guess(ctx, in)
	default:
		return errUnknownSubcommand(in.Subcommand)
	}
}

func (o *OneATwoB) variantName(user int64, v minigame.Variant) string {
	return o.localizer.Lookup(user, string(v)+".name")
}

func (o *OneATwoB) start(ctx context.Context, in *Interaction) error {
	user := in.Requester.ID

	_, err := o.arcade.StartOneATwoB(user)
	var playing *minigame.AlreadyPlayingError
	if errors.As(err, &playing) {
		return in.replyEphemeral(ctx, o.localizer.Lookup(user, "mini_game.playing_another_game", o.variantName(user, playing.Variant)))
	}
	if err != nil {
		return err
	}
	return in.reply(ctx, o.localizer.Lookup(user, "one_a_two_b.start", minigame.DigitCount))
}

func (o *OneATwoB) guess(ctx context.Context, in *Interaction) error {
	user := in.Requester.ID
	l := o.localizer

	out, err := o.arcade.GuessOneATwoB(ctx, user, int(in.Options.Integers["answer"]))
	var playing *minigame.AlreadyPlayingError
	switch {
	case err == nil:
	case errors.Is(err, minigame.ErrNotPlaying):
		return in.reply(ctx, l.Lookup(user, "mini_game.not_playing", "`/one_a_two_b start`"))
	case errors.As(err, &playing):
		return in.replyEphemeral(ctx, l.Lookup(user, "mini_game.playing_another_game", o.variantName(user, playing.Variant)))
	case errors.Is(err, minigame.ErrGuessRejected):
		return in.replyEphemeral(ctx, l.Lookup(user, "one_a_two_b.not_unique", minigame.DigitCount))
	default:
		return err
	}

	line := out.Guess + " = " + out.Score.String()
	if !out.Won {
		return in.replyEphemeral(ctx, line)
	}

	msg := l.Lookup(user, "one_a_two_b.game_over", line, out.Guess, out.ElapsedSeconds/60, out.ElapsedSeconds%60, out.Guesses)
	if out.Rewarded {
		msg += l.Lookup(user, "one_a_two_b.reward", minigame.RewardMaxSeconds/60, minigame.RewardMaxGuesses, minigame.RewardAmount)
	}
	return in.reply(ctx, msg)
}

func (o *OneATwoB) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        o.Name(),
		Description: o.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Start a new game",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "guess",
				Description: "Guess the secret number",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "answer", Description: "Digits must not repeat", Required: true},
				},
			},
		},
	}
}
