package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/domain"
	"github.com/mariusvk/kodekalender/internal/observability/metrics"
)

// Notifier receives game events for fan-out to connected family devices.
// Implementations must not block.
type Notifier interface {
	GameEvent(namespace, kind, ref string)
}

// SubmitResult is the outcome of a code submission
type SubmitResult struct {
	Success         bool
	IsNewCompletion bool
	Unlocked        domain.UnlockedContent
	FailedAttempts  int
}

// SequenceResult is the outcome of a decryption sequence validation.
// CorrectCount is positional partial credit: a right symbol in the wrong
// position earns nothing.
type SequenceResult struct {
	Correct       bool
	CorrectCount  int
	AlreadySolved bool
}

// Engine applies the game's business rules for one family namespace. All
// derivations live here: quest completion is computed from the code log
// against the catalog, never stored as its own flag.
type Engine struct {
	repo          domain.StateRepository
	catalog       *catalog.Catalog
	namespace     string
	maxCodeLength int
	notifier      Notifier
	logger        *slog.Logger
}

// New creates an engine over a family's state repository
func New(repo domain.StateRepository, cat *catalog.Catalog, namespace string, maxCodeLength int, notifier Notifier, logger *slog.Logger) *Engine {
	if maxCodeLength <= 0 {
		maxCodeLength = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:          repo,
		catalog:       cat,
		namespace:     namespace,
		maxCodeLength: maxCodeLength,
		notifier:      notifier,
		logger:        logger,
	}
}

// Repo exposes the repository for the snapshot read
func (e *Engine) Repo() domain.StateRepository {
	return e.repo
}

// canonicalize trims and case-folds a code for comparison and storage
func canonicalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// SubmitCode checks a submitted code against the day's expected code. Both
// sides are canonicalized before comparing. A match is recorded idempotently:
// IsNewCompletion is true only the first time, and only then is the day's
// content-unlock delta computed, persisted and returned. A mismatch
// increments the day's failed-attempt counter and mutates nothing else.
func (e *Engine) SubmitCode(ctx context.Context, input, expectedCode string, day int) (*SubmitResult, error) {
	canonical := canonicalize(input)
	if canonical == "" || len(canonical) > e.maxCodeLength {
		metrics.ObserveSubmission("invalid")
		return &SubmitResult{}, fmt.Errorf("%w: code must be 1-%d characters", ErrValidation, e.maxCodeLength)
	}

	questDay, ok := e.catalog.Day(day)
	if !ok {
		return &SubmitResult{}, fmt.Errorf("%w: day %d", ErrNotFound, day)
	}

	if canonical != canonicalize(expectedCode) {
		count, err := e.repo.IncrementFailedAttempts(ctx, day)
		if err != nil {
			return nil, err
		}
		metrics.ObserveSubmission("rejected")
		e.logger.Info("code rejected",
			slog.Int("day", day),
			slog.Int("failed_attempts", count),
		)
		return &SubmitResult{FailedAttempts: count}, nil
	}

	added, err := e.repo.AppendSubmittedCode(ctx, domain.SubmittedCode{
		Code:        canonical,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Success: true, IsNewCompletion: added}
	if !added {
		metrics.ObserveSubmission("duplicate")
		return result, nil
	}

	delta, err := e.unlockDelta(ctx, questDay.Unlocks)
	if err != nil {
		return nil, err
	}
	if !delta.Empty() {
		if err := e.repo.MergeUnlockedContent(ctx, delta); err != nil {
			return nil, err
		}
	}
	if err := e.repo.ResetFailedAttempts(ctx, day); err != nil {
		return nil, err
	}
	result.Unlocked = delta

	metrics.ObserveSubmission("accepted")
	e.notify("quest_completed", strconv.Itoa(day))
	e.logger.Info("quest completed",
		slog.Int("day", day),
		slog.Int("unlocked_files", len(delta.Files)),
		slog.Int("unlocked_topics", len(delta.Topics)),
		slog.Int("unlocked_modules", len(delta.Modules)),
	)
	return result, nil
}

// IsQuestCompleted reports whether the day's catalog code appears in the
// submitted code log
func (e *Engine) IsQuestCompleted(ctx context.Context, day int) (bool, error) {
	questDay, ok := e.catalog.Day(day)
	if !ok {
		return false, fmt.Errorf("%w: day %d", ErrNotFound, day)
	}
	codes, err := e.repo.SubmittedCodes(ctx)
	if err != nil {
		return false, err
	}
	expected := canonicalize(questDay.Code)
	for _, c := range codes {
		if c.Code == expected {
			return true, nil
		}
	}
	return false, nil
}

// ResolveCrisis marks a crisis resolved. Idempotent and monotonic: repeated
// calls have no further effect and nothing un-resolves it.
func (e *Engine) ResolveCrisis(ctx context.Context, crisisID string) error {
	if _, ok := e.catalog.Crisis(crisisID); !ok {
		return fmt.Errorf("%w: crisis %q", ErrNotFound, crisisID)
	}
	resolved, err := e.repo.CrisisResolved(ctx, crisisID)
	if err != nil {
		return err
	}
	if resolved {
		return nil
	}
	if err := e.repo.MarkCrisisResolved(ctx, crisisID); err != nil {
		return err
	}
	metrics.ObserveCrisisResolved()
	e.notify("crisis_resolved", crisisID)
	e.logger.Info("crisis resolved", slog.String("crisis_id", crisisID))
	return nil
}

// IsCrisisActive reports whether a crisis is currently active: the day has
// reached its catalog threshold and it has not been resolved
func (e *Engine) IsCrisisActive(ctx context.Context, crisisID string, currentDay int) (bool, error) {
	crisis, ok := e.catalog.Crisis(crisisID)
	if !ok {
		return false, fmt.Errorf("%w: crisis %q", ErrNotFound, crisisID)
	}
	if currentDay < crisis.ThresholdDay {
		return false, nil
	}
	resolved, err := e.repo.CrisisResolved(ctx, crisisID)
	if err != nil {
		return false, err
	}
	return !resolved, nil
}

// AddCollectedSymbol inserts a symbol with set semantics. Returns false when
// the symbol was already collected.
func (e *Engine) AddCollectedSymbol(ctx context.Context, symbol domain.Symbol) (bool, error) {
	if symbol.ID == "" {
		return false, fmt.Errorf("%w: symbol id required", ErrValidation)
	}
	added, err := e.repo.AddSymbol(ctx, symbol)
	if err != nil {
		return false, err
	}
	if added {
		e.notify("symbol_collected", symbol.ID)
	}
	return added, nil
}

// GetCollectedSymbols returns all collected symbols
func (e *Engine) GetCollectedSymbols(ctx context.Context) ([]domain.Symbol, error) {
	return e.repo.Symbols(ctx)
}

// ValidateDecryptionSequence compares a user sequence against a challenge's
// correct sequence position by position. A full match persists the solved
// flag; once solved the operation is a pure read and re-submission reports
// correct without re-validating.
func (e *Engine) ValidateDecryptionSequence(ctx context.Context, challengeID string, userSequence []int) (*SequenceResult, error) {
	challenge, ok := e.catalog.Challenge(challengeID)
	if !ok {
		return nil, fmt.Errorf("%w: challenge %q", ErrNotFound, challengeID)
	}

	solved, err := e.repo.ChallengeSolved(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if solved {
		return &SequenceResult{
			Correct:       true,
			CorrectCount:  len(challenge.CorrectSequence),
			AlreadySolved: true,
		}, nil
	}

	// The challenge stays locked until every required symbol is collected
	symbols, err := e.repo.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	collected := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		collected[s.ID] = true
	}
	for _, id := range challenge.RequiredSymbols {
		if !collected[id] {
			return nil, fmt.Errorf("%w: challenge locked, symbol %q not collected", ErrValidation, id)
		}
	}

	correctCount := 0
	for i, want := range challenge.CorrectSequence {
		if i < len(userSequence) && userSequence[i] == want {
			correctCount++
		}
	}
	result := &SequenceResult{
		Correct:      correctCount == len(challenge.CorrectSequence),
		CorrectCount: correctCount,
	}
	if result.Correct {
		if err := e.repo.MarkChallengeSolved(ctx, challengeID); err != nil {
			return nil, err
		}
		e.notify("challenge_solved", challengeID)
		e.logger.Info("decryption challenge solved", slog.String("challenge_id", challengeID))
	}
	return result, nil
}

// AwardBadge inserts a badge idempotently. Returns false when the badge was
// already held.
func (e *Engine) AwardBadge(ctx context.Context, badgeID, icon, label string) (bool, error) {
	if badgeID == "" {
		return false, fmt.Errorf("%w: badge id required", ErrValidation)
	}
	added, err := e.repo.AddBadge(ctx, domain.Badge{
		ID:        badgeID,
		Icon:      icon,
		Label:     label,
		AwardedAt: time.Now(),
	})
	if err != nil {
		return false, err
	}
	if added {
		metrics.ObserveBadgeAwarded()
		e.notify("badge_awarded", badgeID)
	}
	return added, nil
}

// CompletedDays returns the days whose catalog codes appear in the
// submitted code log, in calendar order
func (e *Engine) CompletedDays(ctx context.Context) ([]int, error) {
	codes, err := e.repo.SubmittedCodes(ctx)
	if err != nil {
		return nil, err
	}
	submitted := make(map[string]bool, len(codes))
	for _, c := range codes {
		submitted[c.Code] = true
	}
	var out []int
	for _, day := range e.catalog.Days() {
		if submitted[canonicalize(day.Code)] {
			out = append(out, day.Day)
		}
	}
	return out, nil
}

// ProgressionPercentage returns completed quests over the full catalog as a
// percentage
func (e *Engine) ProgressionPercentage(ctx context.Context) (float64, error) {
	total := e.catalog.TotalDays()
	if total == 0 {
		return 0, nil
	}
	completed, err := e.CompletedDays(ctx)
	if err != nil {
		return 0, err
	}
	return float64(len(completed)) / float64(total) * 100, nil
}

// unlockDelta computes which of the day's unlock descriptors are not yet in
// the persisted sets
func (e *Engine) unlockDelta(ctx context.Context, unlocks catalog.Unlocks) (domain.UnlockedContent, error) {
	current, err := e.repo.UnlockedContent(ctx)
	if err != nil {
		return domain.UnlockedContent{}, err
	}
	return domain.UnlockedContent{
		Files:   missing(unlocks.Files, current.Files),
		Topics:  missing(unlocks.Topics, current.Topics),
		Modules: missing(unlocks.Modules, current.Modules),
	}, nil
}

func missing(want, have []string) []string {
	existing := make(map[string]bool, len(have))
	for _, id := range have {
		existing[id] = true
	}
	var out []string
	for _, id := range want {
		if !existing[id] {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) notify(kind, ref string) {
	if e.notifier == nil {
		return
	}
	e.notifier.GameEvent(e.namespace, kind, ref)
}
