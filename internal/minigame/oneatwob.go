package minigame

import (
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DigitCount is the length of a 1A2B secret.
const DigitCount = 4

// Score is the feedback for one guess: A digits in the right place, B digits
// present elsewhere in the secret.
type Score struct {
	A int
	B int
}

func (s Score) Won() bool { return s.A == DigitCount }

func (s Score) String() string {
	return strconv.Itoa(s.A) + " A " + strconv.Itoa(s.B) + " B"
}

// OneATwoB is a single-player deduction game over a secret of distinct digits.
type OneATwoB struct {
	id      uuid.UUID
	owner   int64
	secret  [DigitCount]int
	started time.Time

	mu      sync.Mutex
	guesses int
}

// Engine creates 1A2B games. perm must return a uniform random permutation of
// [0, n).
type Engine struct {
	clock func() time.Time
	perm  func(n int) []int
}

func NewEngine(clock func() time.Time, perm func(n int) []int) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if perm == nil {
		perm = rand.Perm
	}
	return &Engine{clock: clock, perm: perm}
}

// NewGame draws a secret uniformly over all arrangements of DigitCount
// distinct digits.
func (e *Engine) NewGame(ownerID int64) *OneATwoB {
	g := &OneATwoB{
		id:      uuid.New(),
		owner:   ownerID,
		started: e.clock(),
	}
	copy(g.secret[:], e.perm(10)[:DigitCount])
	return g
}

func newOneATwoBWithSecret(ownerID int64, secret [DigitCount]int, started time.Time) *OneATwoB {
	return &OneATwoB{id: uuid.New(), owner: ownerID, secret: secret, started: started}
}

func (g *OneATwoB) ID() uuid.UUID        { return g.id }
func (g *OneATwoB) OwnerID() int64       { return g.owner }
func (g *OneATwoB) Variant() Variant     { return VariantOneATwoB }
func (g *OneATwoB) StartedAt() time.Time { return g.started }
func (g *OneATwoB) sealed()              {}

// Guesses returns how many accepted guesses were made.
func (g *OneATwoB) Guesses() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.guesses
}

// Score checks a guess against the secret. The sign is ignored and the value
// is read as DigitCount digits with leading zeros. A guess with repeated digits
// or too many digits is rejected without using up an attempt.
func (g *OneATwoB) Score(guess int) (Score, error) {
	digits, ok := Digits(guess)
	if !ok {
		return Score{}, ErrGuessRejected
	}

	var inSecret [10]bool
	for _, d := range g.secret {
		inSecret[d] = true
	}

	var s Score
	shared := 0
	for i, d := range digits {
		if d == g.secret[i] {
			s.A++
		}
		if inSecret[d] {
			shared++
		}
	}
	s.B = shared - s.A

	g.mu.Lock()
	g.guesses++
	g.mu.Unlock()
	return s, nil
}

// Elapsed is the time since the game started.
func (g *OneATwoB) Elapsed(now time.Time) time.Duration {
	return now.Sub(g.started)
}

// ElapsedSeconds is Elapsed truncated to whole seconds.
func (g *OneATwoB) ElapsedSeconds(now time.Time) int64 {
	return int64(g.Elapsed(now) / time.Second)
}

// Digits splits guess into DigitCount zero-padded digits. ok is false when
// the guess has more digits than that or repeats a digit.
func Digits(guess int) (digits [DigitCount]int, ok bool) {
	if guess == math.MinInt {
		return digits, false
	}
	if guess < 0 {
		guess = -guess
	}

	var seen [10]bool
	for i := DigitCount - 1; i >= 0; i-- {
		d := guess % 10
		if seen[d] {
			return digits, false
		}
		seen[d] = true
		digits[i] = d
		guess /= 10
	}
	return digits, guess == 0
}

// Pad renders a guess the way it was scored, e.g. 123 as "0123".
func Pad(guess int) string {
	if guess < 0 && guess != math.MinInt {
		guess = -guess
	}
	s := strconv.Itoa(guess)
	for len(s) < DigitCount {
		s = "0" + s
	}
	return s
}
