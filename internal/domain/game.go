package domain

import (
	"context"
	"time"
)

// FamilySession is one authenticated family scope. The shared credential is
// exchanged for a derived namespace at login and never persisted.
type FamilySession struct {
	SessionID string // UUID
	Namespace string // Derived from the family credential
	CreatedAt time.Time
}

// SubmittedCode is one entry in the append-only code log. Code is canonical
// (trimmed, lower-cased); no two entries share the same Code.
type SubmittedCode struct {
	Code        string
	SubmittedAt time.Time
}

// Badge is an idempotently-awarded achievement marker, unique by ID
type Badge struct {
	ID        string
	Icon      string
	Label     string
	AwardedAt time.Time
}

// Symbol is a collected puzzle token, unique by ID
type Symbol struct {
	ID          string
	Icon        string
	Color       string
	Description string
}

// UnlockedContent holds the bonus content ids revealed so far. All three
// sets grow monotonically.
type UnlockedContent struct {
	Files   []string
	Topics  []string
	Modules []string
}

// Empty reports whether no content is present
func (u UnlockedContent) Empty() bool {
	return len(u.Files) == 0 && len(u.Topics) == 0 && len(u.Modules) == 0
}

// GameSnapshot is the full per-family state, read in one pass for rendering
type GameSnapshot struct {
	SubmittedCodes   []SubmittedCode
	Badges           []Badge
	Symbols          []Symbol
	ResolvedCrises   []string
	SolvedChallenges []string
	Unlocked         UnlockedContent
	FailedAttempts   map[int]int
}

// StateRepository defines typed data access for one family's game state.
// Append operations report whether the item was newly inserted; inserting an
// item whose identity already exists is a no-op, not an error. Crisis and
// challenge flags are monotonic: once marked they never revert.
type StateRepository interface {
	SubmittedCodes(ctx context.Context) ([]SubmittedCode, error)
	AppendSubmittedCode(ctx context.Context, entry SubmittedCode) (bool, error)

	Badges(ctx context.Context) ([]Badge, error)
	AddBadge(ctx context.Context, badge Badge) (bool, error)

	Symbols(ctx context.Context) ([]Symbol, error)
	AddSymbol(ctx context.Context, symbol Symbol) (bool, error)

	CrisisResolved(ctx context.Context, crisisID string) (bool, error)
	MarkCrisisResolved(ctx context.Context, crisisID string) error

	ChallengeSolved(ctx context.Context, challengeID string) (bool, error)
	MarkChallengeSolved(ctx context.Context, challengeID string) error

	UnlockedContent(ctx context.Context) (UnlockedContent, error)
	MergeUnlockedContent(ctx context.Context, delta UnlockedContent) error

	FailedAttempts(ctx context.Context, day int) (int, error)
	IncrementFailedAttempts(ctx context.Context, day int) (int, error)
	ResetFailedAttempts(ctx context.Context, day int) error

	Snapshot(ctx context.Context) (*GameSnapshot, error)
}
