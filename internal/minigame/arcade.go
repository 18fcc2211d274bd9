package minigame

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/warden/internal/platform"
)

// Reward policy for a won 1A2B game.
const (
	RewardMaxSeconds = 120
	RewardMaxGuesses = 7
	RewardAmount     = 100
)

// EligibleForReward reports whether a win was fast and frugal enough.
func EligibleForReward(elapsedSeconds int64, guesses int) bool {
	return elapsedSeconds <= RewardMaxSeconds && guesses <= RewardMaxGuesses
}

// Outcome describes what a guess did to the game.
type Outcome struct {
	Guess string
	Score Score
	// Set when the guess won the game.
	Won            bool
	ElapsedSeconds int64
	Guesses        int
	Rewarded       bool
}

// Arcade wires the registry, the 1A2B engine and the point balance together the
// way the /one_a_two_b command uses them.
type Arcade struct {
	registry *Registry
	engine   *Engine
	points   platform.Points
	clock    func() time.Time
}

func NewArcade(engine *Engine, points platform.Points, clock func() time.Time) *Arcade {
	if clock == nil {
		clock = time.Now
	}
	a := &Arcade{engine: engine, points: points, clock: clock}
	a.registry = NewRegistry(map[Variant]Factory{
		VariantOneATwoB: func(ownerID int64) Session { return engine.NewGame(ownerID) },
	})
	return a
}

func (a *Arcade) Registry() *Registry { return a.registry }

// StartOneATwoB opens a new 1A2B game for the player.
func (a *Arcade) StartOneATwoB(ownerID int64) (*OneATwoB, error) {
	s, err := a.registry.Start(ownerID, VariantOneATwoB)
	if err != nil {
		return nil, err
	}
	log.Debug().Int64("user", ownerID).Str("session", s.ID().String()).Msg("1A2B game started")
	return s.(*OneATwoB), nil
}

// GuessOneATwoB scores a guess in the player's 1A2B game. A winning guess ends
// the session and credits the reward when the player qualifies.
func (a *Arcade) GuessOneATwoB(ctx context.Context, ownerID int64, guess int) (Outcome, error) {
	s, ok := a.registry.Get(ownerID)
	if !ok {
		return Outcome{}, ErrNotPlaying
	}
	game, ok := s.(*OneATwoB)
	if !ok {
		return Outcome{}, &AlreadyPlayingError{Variant: s.Variant()}
	}

	score, err := game.Score(guess)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Guess: Pad(guess), Score: score, Guesses: game.Guesses()}
	if !score.Won() {
		return out, nil
	}

	// only the guess that removes the session reports the win
	if !a.registry.endIf(ownerID, game) {
		return Outcome{}, ErrNotPlaying
	}
	out.Won = true
	out.ElapsedSeconds = game.ElapsedSeconds(a.clock())

	if EligibleForReward(out.ElapsedSeconds, out.Guesses) {
		if err := a.points.AddReward(ctx, ownerID, RewardAmount); err != nil {
			log.Error().Err(err).Int64("user", ownerID).Msg("failed to credit 1A2B reward")
		} else {
			out.Rewarded = true
		}
	}

	log.Info().
		Int64("user", ownerID).
		Str("session", game.ID().String()).
		Int64("seconds", out.ElapsedSeconds).
		Int("guesses", out.Guesses).
		Bool("rewarded", out.Rewarded).
		Msg("1A2B game won")
	return out, nil
}
