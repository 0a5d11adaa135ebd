package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mariusvk/kodekalender/internal/domain"
	"github.com/mariusvk/kodekalender/internal/storage"
)

// Storage keys within a family namespace
const (
	keyCodes            = "codes"
	keyBadges           = "badges"
	keySymbols          = "symbols"
	keyCrisesResolved   = "crises_resolved"
	keyChallengesSolved = "challenges_solved"
	keyUnlockedFiles    = "unlocked_files"
	keyUnlockedTopics   = "unlocked_topics"
	keyUnlockedModules  = "unlocked_modules"
	keyAttempts         = "attempts"
)

// StateRepository implements domain.StateRepository over the active storage
// backend, bound to one family namespace. Idempotency for append-type
// collections is enforced here by identity key; duplicate appends are no-ops.
type StateRepository struct {
	backend   storage.Backend
	namespace string
	logger    *slog.Logger
}

// NewStateRepository creates a repository for one family namespace
func NewStateRepository(backend storage.Backend, namespace string, logger *slog.Logger) *StateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateRepository{backend: backend, namespace: namespace, logger: logger}
}

// SubmittedCodes returns the append-only code log
func (r *StateRepository) SubmittedCodes(ctx context.Context) ([]domain.SubmittedCode, error) {
	var out []domain.SubmittedCode
	if err := r.readCollection(ctx, keyCodes, func(raw json.RawMessage) error {
		var entry domain.SubmittedCode
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		out = append(out, entry)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendSubmittedCode appends a code entry keyed by its canonical code.
// Returns false when the code was already recorded.
func (r *StateRepository) AppendSubmittedCode(ctx context.Context, entry domain.SubmittedCode) (bool, error) {
	return r.appendUnique(ctx, keyCodes, entry.Code, entry)
}

// Badges returns all awarded badges
func (r *StateRepository) Badges(ctx context.Context) ([]domain.Badge, error) {
	var out []domain.Badge
	if err := r.readCollection(ctx, keyBadges, func(raw json.RawMessage) error {
		var badge domain.Badge
		if err := json.Unmarshal(raw, &badge); err != nil {
			return err
		}
		out = append(out, badge)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// AddBadge awards a badge; a second award of the same id is a no-op
func (r *StateRepository) AddBadge(ctx context.Context, badge domain.Badge) (bool, error) {
	return r.appendUnique(ctx, keyBadges, badge.ID, badge)
}

// Symbols returns all collected symbols
func (r *StateRepository) Symbols(ctx context.Context) ([]domain.Symbol, error) {
	var out []domain.Symbol
	if err := r.readCollection(ctx, keySymbols, func(raw json.RawMessage) error {
		var symbol domain.Symbol
		if err := json.Unmarshal(raw, &symbol); err != nil {
			return err
		}
		out = append(out, symbol)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// AddSymbol collects a symbol with set semantics on its id
func (r *StateRepository) AddSymbol(ctx context.Context, symbol domain.Symbol) (bool, error) {
	return r.appendUnique(ctx, keySymbols, symbol.ID, symbol)
}

// CrisisResolved reports whether a crisis has been resolved
func (r *StateRepository) CrisisResolved(ctx context.Context, crisisID string) (bool, error) {
	return r.setContains(ctx, keyCrisesResolved, crisisID)
}

// MarkCrisisResolved records a crisis as resolved. Monotonic: there is no
// operation that removes the flag.
func (r *StateRepository) MarkCrisisResolved(ctx context.Context, crisisID string) error {
	_, err := r.appendUnique(ctx, keyCrisesResolved, crisisID, crisisID)
	return err
}

// ChallengeSolved reports whether a decryption challenge has been solved
func (r *StateRepository) ChallengeSolved(ctx context.Context, challengeID string) (bool, error) {
	return r.setContains(ctx, keyChallengesSolved, challengeID)
}

// MarkChallengeSolved records a challenge as solved, terminally
func (r *StateRepository) MarkChallengeSolved(ctx context.Context, challengeID string) error {
	_, err := r.appendUnique(ctx, keyChallengesSolved, challengeID, challengeID)
	return err
}

// UnlockedContent returns the accumulated content-unlock sets
func (r *StateRepository) UnlockedContent(ctx context.Context) (domain.UnlockedContent, error) {
	files, err := r.stringSet(ctx, keyUnlockedFiles)
	if err != nil {
		return domain.UnlockedContent{}, err
	}
	topics, err := r.stringSet(ctx, keyUnlockedTopics)
	if err != nil {
		return domain.UnlockedContent{}, err
	}
	modules, err := r.stringSet(ctx, keyUnlockedModules)
	if err != nil {
		return domain.UnlockedContent{}, err
	}
	return domain.UnlockedContent{Files: files, Topics: topics, Modules: modules}, nil
}

// MergeUnlockedContent adds content ids to the unlock sets. Already-present
// ids are absorbed; the sets only grow.
func (r *StateRepository) MergeUnlockedContent(ctx context.Context, delta domain.UnlockedContent) error {
	for _, id := range delta.Files {
		if _, err := r.appendUnique(ctx, keyUnlockedFiles, id, id); err != nil {
			return err
		}
	}
	for _, id := range delta.Topics {
		if _, err := r.appendUnique(ctx, keyUnlockedTopics, id, id); err != nil {
			return err
		}
	}
	for _, id := range delta.Modules {
		if _, err := r.appendUnique(ctx, keyUnlockedModules, id, id); err != nil {
			return err
		}
	}
	return nil
}

// FailedAttempts returns the failed-attempt count for a day
func (r *StateRepository) FailedAttempts(ctx context.Context, day int) (int, error) {
	attempts, err := r.attempts(ctx)
	if err != nil {
		return 0, err
	}
	return attempts[strconv.Itoa(day)], nil
}

// IncrementFailedAttempts bumps a day's failed-attempt count and returns it
func (r *StateRepository) IncrementFailedAttempts(ctx context.Context, day int) (int, error) {
	attempts, err := r.attempts(ctx)
	if err != nil {
		return 0, err
	}
	key := strconv.Itoa(day)
	attempts[key]++
	if err := r.writeAttempts(ctx, attempts); err != nil {
		return 0, err
	}
	return attempts[key], nil
}

// ResetFailedAttempts clears a day's counter after successful completion
func (r *StateRepository) ResetFailedAttempts(ctx context.Context, day int) error {
	attempts, err := r.attempts(ctx)
	if err != nil {
		return err
	}
	key := strconv.Itoa(day)
	if _, ok := attempts[key]; !ok {
		return nil
	}
	delete(attempts, key)
	return r.writeAttempts(ctx, attempts)
}

// Snapshot reads the full game state in one pass for rendering
func (r *StateRepository) Snapshot(ctx context.Context) (*domain.GameSnapshot, error) {
	codes, err := r.SubmittedCodes(ctx)
	if err != nil {
		return nil, err
	}
	badges, err := r.Badges(ctx)
	if err != nil {
		return nil, err
	}
	symbols, err := r.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	crises, err := r.stringSet(ctx, keyCrisesResolved)
	if err != nil {
		return nil, err
	}
	challenges, err := r.stringSet(ctx, keyChallengesSolved)
	if err != nil {
		return nil, err
	}
	unlocked, err := r.UnlockedContent(ctx)
	if err != nil {
		return nil, err
	}
	rawAttempts, err := r.attempts(ctx)
	if err != nil {
		return nil, err
	}
	attempts := make(map[int]int, len(rawAttempts))
	for k, v := range rawAttempts {
		day, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		attempts[day] = v
	}

	return &domain.GameSnapshot{
		SubmittedCodes:   codes,
		Badges:           badges,
		Symbols:          symbols,
		ResolvedCrises:   crises,
		SolvedChallenges: challenges,
		Unlocked:         unlocked,
		FailedAttempts:   attempts,
	}, nil
}

func (r *StateRepository) readCollection(ctx context.Context, key string, each func(json.RawMessage) error) error {
	data, ok, err := r.backend.Get(ctx, r.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	items, err := storage.Items(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	for _, raw := range items {
		if err := each(raw); err != nil {
			return fmt.Errorf("failed to decode %s item: %w", key, err)
		}
	}
	return nil
}

func (r *StateRepository) appendUnique(ctx context.Context, key, identity string, item any) (bool, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("failed to marshal %s item: %w", key, err)
	}
	added, err := r.backend.AppendUnique(ctx, r.namespace, key, identity, data)
	if err != nil {
		return false, fmt.Errorf("failed to append to %s: %w", key, err)
	}
	if added {
		r.logger.Debug("state appended",
			slog.String("collection", key),
			slog.String("identity", identity),
		)
	}
	return added, nil
}

func (r *StateRepository) setContains(ctx context.Context, key, id string) (bool, error) {
	ids, err := r.stringSet(ctx, key)
	if err != nil {
		return false, err
	}
	for _, existing := range ids {
		if existing == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *StateRepository) stringSet(ctx context.Context, key string) ([]string, error) {
	data, ok, err := r.backend.Get(ctx, r.namespace, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	ids, err := storage.Identities(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return ids, nil
}

func (r *StateRepository) attempts(ctx context.Context) (map[string]int, error) {
	data, ok, err := r.backend.Get(ctx, r.namespace, keyAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to read attempts: %w", err)
	}
	attempts := map[string]int{}
	if !ok {
		return attempts, nil
	}
	if err := json.Unmarshal(data, &attempts); err != nil {
		return nil, fmt.Errorf("failed to decode attempts: %w", err)
	}
	return attempts, nil
}

func (r *StateRepository) writeAttempts(ctx context.Context, attempts map[string]int) error {
	data, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}
	if err := r.backend.Set(ctx, r.namespace, keyAttempts, data); err != nil {
		return fmt.Errorf("failed to write attempts: %w", err)
	}
	return nil
}
