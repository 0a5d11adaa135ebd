package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/mariusvk/kodekalender/internal/catalog"
	"github.com/mariusvk/kodekalender/internal/domain"
)

type memStateRepo struct {
	codes      []domain.SubmittedCode
	badges     []domain.Badge
	symbols    []domain.Symbol
	crises     map[string]bool
	challenges map[string]bool
	unlocked   domain.UnlockedContent
	attempts   map[int]int
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{crises: map[string]bool{}, challenges: map[string]bool{}, attempts: map[int]int{}}
}

func (m *memStateRepo) SubmittedCodes(ctx context.Context) ([]domain.SubmittedCode, error) {
	return m.codes, nil
}
func (m *memStateRepo) AppendSubmittedCode(ctx context.Context, entry domain.SubmittedCode) (bool, error) {
	for _, c := range m.codes {
		if c.Code == entry.Code {
			return false, nil
		}
	}
	m.codes = append(m.codes, entry)
	return true, nil
}
func (m *memStateRepo) Badges(ctx context.Context) ([]domain.Badge, error) { return m.badges, nil }
func (m *memStateRepo) AddBadge(ctx context.Context, badge domain.Badge) (bool, error) {
	for _, b := range m.badges {
		if b.ID == badge.ID {
			return false, nil
		}
	}
	m.badges = append(m.badges, badge)
	return true, nil
}
func (m *memStateRepo) Symbols(ctx context.Context) ([]domain.Symbol, error) { return m.symbols, nil }
func (m *memStateRepo) AddSymbol(ctx context.Context, symbol domain.Symbol) (bool, error) {
	for _, s := range m.symbols {
		if s.ID == symbol.ID {
			return false, nil
		}
	}
	m.symbols = append(m.symbols, symbol)
	return true, nil
}
func (m *memStateRepo) CrisisResolved(ctx context.Context, crisisID string) (bool, error) {
	return m.crises[crisisID], nil
}
func (m *memStateRepo) MarkCrisisResolved(ctx context.Context, crisisID string) error {
	m.crises[crisisID] = true
	return nil
}
func (m *memStateRepo) ChallengeSolved(ctx context.Context, challengeID string) (bool, error) {
	return m.challenges[challengeID], nil
}
func (m *memStateRepo) MarkChallengeSolved(ctx context.Context, challengeID string) error {
	m.challenges[challengeID] = true
	return nil
}
func (m *memStateRepo) UnlockedContent(ctx context.Context) (domain.UnlockedContent, error) {
	return m.unlocked, nil
}
func (m *memStateRepo) MergeUnlockedContent(ctx context.Context, delta domain.UnlockedContent) error {
	m.unlocked.Files = append(m.unlocked.Files, delta.Files...)
	m.unlocked.Topics = append(m.unlocked.Topics, delta.Topics...)
	m.unlocked.Modules = append(m.unlocked.Modules, delta.Modules...)
	return nil
}
func (m *memStateRepo) FailedAttempts(ctx context.Context, day int) (int, error) {
	return m.attempts[day], nil
}
func (m *memStateRepo) IncrementFailedAttempts(ctx context.Context, day int) (int, error) {
	m.attempts[day]++
	return m.attempts[day], nil
}
func (m *memStateRepo) ResetFailedAttempts(ctx context.Context, day int) error {
	delete(m.attempts, day)
	return nil
}
func (m *memStateRepo) Snapshot(ctx context.Context) (*domain.GameSnapshot, error) {
	return &domain.GameSnapshot{
		SubmittedCodes: m.codes,
		Badges:         m.badges,
		Symbols:        m.symbols,
		Unlocked:       m.unlocked,
		FailedAttempts: m.attempts,
	}, nil
}

func testCatalog() *catalog.Catalog {
	days := []catalog.QuestDay{
		{Day: 1, Code: "nissekode2025", Unlocks: catalog.Unlocks{Files: []string{"letter-1"}, Topics: []string{"morse"}}},
		{Day: 2, Code: "abc123"},
		{Day: 3, Code: "polarlys", Unlocks: catalog.Unlocks{Modules: []string{"radio"}}},
		{Day: 4, Code: "krampus"},
	}
	crises := []catalog.Crisis{
		{ID: "antenna-down", ThresholdDay: 3},
	}
	challenges := []catalog.Challenge{
		{ID: "frequency-lock", RequiredSymbols: []string{"sun", "moon", "star"}, CorrectSequence: []int{0, 1, 2}},
	}
	return catalog.New(days, crises, challenges)
}

func newTestEngine(repo domain.StateRepository) *Engine {
	return New(repo, testCatalog(), "fam-test", 64, nil, nil)
}

func TestSubmitCodeNewThenDuplicate(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	res, err := e.SubmitCode(ctx, "NISSEKODE2025", "nissekode2025", 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !res.Success || !res.IsNewCompletion {
		t.Fatalf("expected new completion, got %+v", res)
	}
	if len(res.Unlocked.Files) != 1 || res.Unlocked.Files[0] != "letter-1" {
		t.Fatalf("expected letter-1 unlock, got %+v", res.Unlocked)
	}

	// Same code again: success but not a new completion, no new unlocks
	res, err = e.SubmitCode(ctx, "nissekode2025", "nissekode2025", 1)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if !res.Success || res.IsNewCompletion {
		t.Fatalf("expected idempotent duplicate, got %+v", res)
	}
	if !res.Unlocked.Empty() {
		t.Fatalf("duplicate submission must not unlock again: %+v", res.Unlocked)
	}
	if len(repo.codes) != 1 {
		t.Fatalf("expected exactly one logged code, got %d", len(repo.codes))
	}
}

func TestSubmitCodeCanonicalization(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	res, err := e.SubmitCode(ctx, "  ABC123  ", "abc123", 2)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("whitespace and case must not matter")
	}
	if repo.codes[0].Code != "abc123" {
		t.Fatalf("code must be stored canonically, got %q", repo.codes[0].Code)
	}

	// Differently-cased resubmission is the same identity
	res, err = e.SubmitCode(ctx, "aBc123", "abc123", 2)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if res.IsNewCompletion {
		t.Fatalf("case variant must hit the same log entry")
	}
}

func TestSubmitCodeWrongCode(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	res, err := e.SubmitCode(ctx, "wrong", "abc123", 2)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Success {
		t.Fatalf("expected rejection")
	}
	if res.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", res.FailedAttempts)
	}
	if len(repo.codes) != 0 {
		t.Fatalf("rejected code must not be logged")
	}

	// Counter keeps rising until a correct submission resets it
	res, _ = e.SubmitCode(ctx, "still wrong", "abc123", 2)
	if res.FailedAttempts != 2 {
		t.Fatalf("expected 2 failed attempts, got %d", res.FailedAttempts)
	}
	if _, err := e.SubmitCode(ctx, "abc123", "abc123", 2); err != nil {
		t.Fatalf("correct submit failed: %v", err)
	}
	if n, _ := repo.FailedAttempts(ctx, 2); n != 0 {
		t.Fatalf("expected attempts reset after success, got %d", n)
	}
}

func TestSubmitCodeValidation(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	if _, err := e.SubmitCode(ctx, "   ", "abc123", 2); err == nil {
		t.Fatalf("expected validation error for blank code")
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := e.SubmitCode(ctx, string(long), "abc123", 2); err == nil {
		t.Fatalf("expected validation error for oversized code")
	}
	if _, err := e.SubmitCode(ctx, "abc123", "abc123", 99); err == nil {
		t.Fatalf("expected not-found error for unknown day")
	}
}

func TestIsQuestCompleted(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	done, err := e.IsQuestCompleted(ctx, 1)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if done {
		t.Fatalf("untouched day must not be completed")
	}

	if _, err := e.SubmitCode(ctx, "nissekode2025", "nissekode2025", 1); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	done, err = e.IsQuestCompleted(ctx, 1)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !done {
		t.Fatalf("completed day must report completed")
	}
	if _, err := e.IsQuestCompleted(ctx, 99); err == nil {
		t.Fatalf("expected not-found for unknown day")
	}
}

func TestCrisisLifecycle(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	// Before the threshold day the crisis is dormant
	active, err := e.IsCrisisActive(ctx, "antenna-down", 2)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if active {
		t.Fatalf("crisis must be inactive before day 3")
	}

	// From the threshold on, active until resolved
	active, _ = e.IsCrisisActive(ctx, "antenna-down", 3)
	if !active {
		t.Fatalf("crisis must be active on day 3")
	}
	active, _ = e.IsCrisisActive(ctx, "antenna-down", 24)
	if !active {
		t.Fatalf("crisis must stay active until resolved")
	}

	if err := e.ResolveCrisis(ctx, "antenna-down"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	active, _ = e.IsCrisisActive(ctx, "antenna-down", 24)
	if active {
		t.Fatalf("resolved crisis must be inactive")
	}

	// Resolving again is a no-op, never an error
	if err := e.ResolveCrisis(ctx, "antenna-down"); err != nil {
		t.Fatalf("repeat resolve failed: %v", err)
	}
	if err := e.ResolveCrisis(ctx, "no-such-crisis"); err == nil {
		t.Fatalf("expected not-found for unknown crisis")
	}
}

func TestAddCollectedSymbol(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	sun := domain.Symbol{ID: "sun", Icon: "☀", Color: "yellow"}
	added, err := e.AddCollectedSymbol(ctx, sun)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if !added {
		t.Fatalf("first add must report true")
	}
	added, _ = e.AddCollectedSymbol(ctx, sun)
	if added {
		t.Fatalf("second add must report false")
	}
	symbols, _ := e.GetCollectedSymbols(ctx)
	if len(symbols) != 1 {
		t.Fatalf("expected one symbol, got %d", len(symbols))
	}
	if _, err := e.AddCollectedSymbol(ctx, domain.Symbol{}); err == nil {
		t.Fatalf("expected validation error for empty symbol id")
	}
}

func TestValidateDecryptionSequence(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	// Locked until every required symbol is collected
	if _, err := e.ValidateDecryptionSequence(ctx, "frequency-lock", []int{0, 1, 2}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected locked challenge to fail validation, got %v", err)
	}
	for _, id := range []string{"sun", "moon", "star"} {
		if _, err := e.AddCollectedSymbol(ctx, domain.Symbol{ID: id, Icon: "*", Description: "Symbol " + id}); err != nil {
			t.Fatalf("collect %s: %v", id, err)
		}
	}

	// Right symbols, wrong order: only position 0 matches
	res, err := e.ValidateDecryptionSequence(ctx, "frequency-lock", []int{0, 2, 1})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if res.Correct {
		t.Fatalf("out-of-order sequence must not pass")
	}
	if res.CorrectCount != 1 {
		t.Fatalf("expected positional credit 1, got %d", res.CorrectCount)
	}

	// Short sequence earns credit only for supplied positions
	res, _ = e.ValidateDecryptionSequence(ctx, "frequency-lock", []int{0})
	if res.Correct || res.CorrectCount != 1 {
		t.Fatalf("expected partial credit 1 for prefix, got %+v", res)
	}

	res, err = e.ValidateDecryptionSequence(ctx, "frequency-lock", []int{0, 1, 2})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !res.Correct || res.CorrectCount != 3 || res.AlreadySolved {
		t.Fatalf("expected fresh solve, got %+v", res)
	}

	// Solved is terminal: even a wrong re-submission reports correct
	res, _ = e.ValidateDecryptionSequence(ctx, "frequency-lock", []int{2, 1, 0})
	if !res.Correct || !res.AlreadySolved {
		t.Fatalf("solved challenge must stay solved, got %+v", res)
	}
	if _, err := e.ValidateDecryptionSequence(ctx, "nope", nil); err == nil {
		t.Fatalf("expected not-found for unknown challenge")
	}
}

func TestAwardBadge(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	added, err := e.AwardBadge(ctx, "first-code", "🏅", "First code cracked")
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if !added {
		t.Fatalf("first award must report true")
	}
	added, _ = e.AwardBadge(ctx, "first-code", "🏅", "First code cracked")
	if added {
		t.Fatalf("repeat award must report false")
	}
	if len(repo.badges) != 1 {
		t.Fatalf("expected one badge, got %d", len(repo.badges))
	}
	if repo.badges[0].AwardedAt.IsZero() {
		t.Fatalf("badge must carry an award time")
	}
	if _, err := e.AwardBadge(ctx, "", "x", "x"); err == nil {
		t.Fatalf("expected validation error for empty badge id")
	}
}

func TestProgressionPercentage(t *testing.T) {
	repo := newMemStateRepo()
	e := newTestEngine(repo)
	ctx := context.Background()

	pct, err := e.ProgressionPercentage(ctx)
	if err != nil {
		t.Fatalf("progression failed: %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected 0%%, got %f", pct)
	}

	for _, c := range []struct {
		day  int
		code string
	}{{1, "nissekode2025"}, {2, "abc123"}, {3, "polarlys"}} {
		if _, err := e.SubmitCode(ctx, c.code, c.code, c.day); err != nil {
			t.Fatalf("submit day %d failed: %v", c.day, err)
		}
	}
	pct, _ = e.ProgressionPercentage(ctx)
	if pct != 75 {
		t.Fatalf("expected 75%% with 3 of 4 days, got %f", pct)
	}
	days, _ := e.CompletedDays(ctx)
	if len(days) != 3 || days[0] != 1 || days[2] != 3 {
		t.Fatalf("expected days [1 2 3], got %v", days)
	}
}

func TestUnlockDeltaSkipsExisting(t *testing.T) {
	repo := newMemStateRepo()
	repo.unlocked = domain.UnlockedContent{Topics: []string{"morse"}}
	e := newTestEngine(repo)
	ctx := context.Background()

	res, err := e.SubmitCode(ctx, "nissekode2025", "nissekode2025", 1)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(res.Unlocked.Topics) != 0 {
		t.Fatalf("already-unlocked topic must not appear in delta: %+v", res.Unlocked)
	}
	if len(res.Unlocked.Files) != 1 {
		t.Fatalf("new file must still unlock: %+v", res.Unlocked)
	}
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) GameEvent(namespace, kind, ref string) {
	r.events = append(r.events, kind+":"+ref)
}

func TestNotifierReceivesEvents(t *testing.T) {
	repo := newMemStateRepo()
	n := &recordingNotifier{}
	e := New(repo, testCatalog(), "fam-test", 64, n, nil)
	ctx := context.Background()

	if _, err := e.SubmitCode(ctx, "abc123", "abc123", 2); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := e.AwardBadge(ctx, "b1", "", ""); err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if err := e.ResolveCrisis(ctx, "antenna-down"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []string{"quest_completed:2", "badge_awarded:b1", "crisis_resolved:antenna-down"}
	if len(n.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), n.events)
	}
	for i, ev := range want {
		if n.events[i] != ev {
			t.Fatalf("event %d: expected %s, got %s", i, ev, n.events[i])
		}
	}
}
