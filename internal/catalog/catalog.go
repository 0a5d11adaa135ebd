package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Unlocks lists the content ids a quest reveals on completion
type Unlocks struct {
	Files   []string `json:"files,omitempty"`
	Topics  []string `json:"topics,omitempty"`
	Modules []string `json:"modules,omitempty"`
}

// QuestDay is one calendar day's mission definition
type QuestDay struct {
	Day     int     `json:"day"`
	Code    string  `json:"code"`
	Unlocks Unlocks `json:"unlocks"`
}

// Crisis is a scripted failure state that activates at a day threshold
type Crisis struct {
	ID           string `json:"id"`
	ThresholdDay int    `json:"thresholdDay"`
}

// Challenge is an ordered-sequence decryption puzzle over collected symbols.
// CorrectSequence holds indices into RequiredSymbols.
type Challenge struct {
	ID              string   `json:"id"`
	RequiredSymbols []string `json:"requiredSymbols"`
	CorrectSequence []int    `json:"correctSequence"`
}

// Catalog is the static season content. The engine treats it as read-only
// configuration; code uniqueness and day-range completeness are validated at
// load time, not here.
type Catalog struct {
	days       map[int]QuestDay
	order      []int
	crises     map[string]Crisis
	challenges map[string]Challenge
}

// New builds a catalog from definitions
func New(days []QuestDay, crises []Crisis, challenges []Challenge) *Catalog {
	c := &Catalog{
		days:       make(map[int]QuestDay, len(days)),
		crises:     make(map[string]Crisis, len(crises)),
		challenges: make(map[string]Challenge, len(challenges)),
	}
	for _, d := range days {
		c.days[d.Day] = d
		c.order = append(c.order, d.Day)
	}
	sort.Ints(c.order)
	for _, cr := range crises {
		c.crises[cr.ID] = cr
	}
	for _, ch := range challenges {
		c.challenges[ch.ID] = ch
	}
	return c
}

type catalogFile struct {
	Days       []QuestDay  `json:"days"`
	Crises     []Crisis    `json:"crises"`
	Challenges []Challenge `json:"challenges"`
}

// Load reads a catalog from a JSON file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Days) == 0 {
		return nil, fmt.Errorf("catalog has no days")
	}
	return New(f.Days, f.Crises, f.Challenges), nil
}

// Day returns one day's quest definition
func (c *Catalog) Day(day int) (QuestDay, bool) {
	d, ok := c.days[day]
	return d, ok
}

// Days returns all quest days in calendar order
func (c *Catalog) Days() []QuestDay {
	out := make([]QuestDay, 0, len(c.order))
	for _, day := range c.order {
		out = append(out, c.days[day])
	}
	return out
}

// TotalDays returns the number of quest days in the season
func (c *Catalog) TotalDays() int {
	return len(c.days)
}

// Crisis returns a crisis definition by id
func (c *Catalog) Crisis(id string) (Crisis, bool) {
	cr, ok := c.crises[id]
	return cr, ok
}

// Challenge returns a decryption challenge definition by id
func (c *Catalog) Challenge(id string) (Challenge, bool) {
	ch, ok := c.challenges[id]
	return ch, ok
}

// DayForCode returns the quest day whose code matches, case-insensitively
func (c *Catalog) DayForCode(code string) (QuestDay, bool) {
	canonical := strings.ToLower(strings.TrimSpace(code))
	for _, day := range c.order {
		d := c.days[day]
		if strings.ToLower(strings.TrimSpace(d.Code)) == canonical {
			return d, true
		}
	}
	return QuestDay{}, false
}
