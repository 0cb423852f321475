// Package uniqueness cross-checks in-progress answers against prior
// submissions: team names, team emails, kit color triples and jersey numbers.
//
// The checks are pure functions over records the caller already fetched;
// every rejection is a *domain.Error whose message names the corrective
// action the user should take.
package uniqueness

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

var fold = cases.Fold()

func normalizeText(s string) string {
	return fold.String(strings.TrimSpace(s))
}

// =============================================================================
// Colors
// =============================================================================

// Triple is a kit color palette.
type Triple struct {
	Primary   string
	Secondary string
	Trim      string
}

// TripleFrom converts structured colors.
func TripleFrom(c domain.Colors) Triple {
	return Triple{Primary: c.Primary, Secondary: c.Secondary, Trim: c.Trim}
}

// Normalize uppercases each channel and ensures a leading '#'.
func (t Triple) Normalize() Triple {
	return Triple{
		Primary:   NormalizeHex(t.Primary),
		Secondary: NormalizeHex(t.Secondary),
		Trim:      NormalizeHex(t.Trim),
	}
}

// NormalizeHex returns the uppercase '#'-prefixed form of a hex color.
func NormalizeHex(hex string) string {
	h := strings.ToUpper(strings.TrimSpace(hex))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "#") {
		h = "#" + h
	}
	return h
}

// IsWhite reports whether hex is #FFFFFF or #FFF in any case.
func IsWhite(hex string) bool {
	h := NormalizeHex(hex)
	return h == "#FFFFFF" || h == "#FFF"
}

// CheckColor rejects white on any channel.
func CheckColor(op, hex string) error {
	if IsWhite(hex) {
		return domain.Invalid(op, "White is not allowed as a kit color. Please choose another color.")
	}
	return nil
}

// CheckTripleColors rejects a palette with white on any channel.
func CheckTripleColors(op string, t Triple) error {
	for _, c := range []string{t.Primary, t.Secondary, t.Trim} {
		if err := CheckColor(op, c); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Team Index
// =============================================================================

// TeamKeys locates identity values inside team submission data.
type TeamKeys struct {
	NameKey      string
	EmailKey     string
	ColorFieldID string
}

// Index holds lookup sets built from prior team submissions.
type Index struct {
	names   map[string]bool
	emails  map[string]bool
	triples map[Triple]bool
}

// BuildIndex folds every prior team submission into lookup sets.
func BuildIndex(records []domain.SubmissionRecord, keys TeamKeys) *Index {
	idx := &Index{
		names:   make(map[string]bool, len(records)),
		emails:  make(map[string]bool, len(records)),
		triples: make(map[Triple]bool, len(records)),
	}
	for _, rec := range records {
		if keys.NameKey != "" {
			if n := normalizeText(rec.String(keys.NameKey)); n != "" {
				idx.names[n] = true
			}
		}
		if keys.EmailKey != "" {
			if e := normalizeText(rec.String(keys.EmailKey)); e != "" {
				idx.emails[e] = true
			}
		}
		if keys.ColorFieldID != "" {
			t := Triple{
				Primary:   rec.String(domain.SubKey(keys.ColorFieldID, domain.SuffixPrimaryColor).String()),
				Secondary: rec.String(domain.SubKey(keys.ColorFieldID, domain.SuffixSecondaryColor).String()),
				Trim:      rec.String(domain.SubKey(keys.ColorFieldID, domain.SuffixTrimColor).String()),
			}.Normalize()
			if t != (Triple{}) {
				idx.triples[t] = true
			}
		}
	}
	return idx
}

// Empty returns an index with no entries.
func Empty() *Index {
	return BuildIndex(nil, TeamKeys{})
}

// CheckName rejects a team name that is already registered.
func (i *Index) CheckName(op, name string) error {
	if i.names[normalizeText(name)] {
		return domain.Conflict(op, "A team with this name is already registered. Please enter a different team name.")
	}
	return nil
}

// CheckEmail rejects a team email that is already registered.
func (i *Index) CheckEmail(op, email string) error {
	if i.emails[normalizeText(email)] {
		return domain.Conflict(op, "This email is already registered to another team. Please enter a different email.")
	}
	return nil
}

// CheckColors rejects a palette that exactly matches a registered team's.
// A palette differing in any single channel is accepted.
func (i *Index) CheckColors(op string, t Triple) error {
	if i.triples[t.Normalize()] {
		return domain.Conflict(op, "Another team already uses this exact color combination. Please choose another design or change one of the colors.")
	}
	return nil
}

// Len returns the number of distinct names indexed.
func (i *Index) Len() int {
	return len(i.names)
}

// =============================================================================
// Jersey Numbers
// =============================================================================

var shirtNumberPattern = regexp.MustCompile(`^[0-9]{1,2}$`)

// ValidateShirtNumber checks the 1-2 digit shirt number syntax.
func ValidateShirtNumber(op, number string) error {
	if !shirtNumberPattern.MatchString(strings.TrimSpace(number)) {
		return domain.Invalid(op, "Shirt numbers must be one or two digits. Please enter a number between 0 and 99.")
	}
	return nil
}

// SubTeamSignature builds a stable "name|gender|agegroup" signature from a
// sub-team stored as a struct, a decoded JSON object or a JSON-encoded
// string. Values that cannot be parsed give "".
func SubTeamSignature(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case domain.SubTeam:
		return signature(t)
	case *domain.SubTeam:
		if t == nil {
			return ""
		}
		return signature(*t)
	case map[string]any:
		return signature(domain.SubTeam{
			TeamName: domain.AnyToString(t["teamName"]),
			Gender:   domain.AnyToString(t["gender"]),
			AgeGroup: domain.AnyToString(t["ageGroup"]),
		})
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		var st domain.SubTeam
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return ""
		}
		return signature(st)
	}
	return ""
}

func signature(st domain.SubTeam) string {
	if strings.TrimSpace(st.TeamName) == "" && strings.TrimSpace(st.Gender) == "" && strings.TrimSpace(st.AgeGroup) == "" {
		return ""
	}
	return normalizeText(st.TeamName) + "|" + normalizeText(st.Gender) + "|" + normalizeText(st.AgeGroup)
}

// PlayerKeys locates jersey inputs inside player submission data.
type PlayerKeys struct {
	TeamKey    string
	SubTeamKey string
	NumberKey  string
}

// JerseyCandidate is the in-progress player's jersey choice.
type JerseyCandidate struct {
	TeamID  string
	SubTeam any
	Number  string
}

// CheckJersey validates the shirt number syntax, then rejects it if another
// player of the same team and the same sub-team already wears it.
func CheckJersey(op string, c JerseyCandidate, players []domain.SubmissionRecord, keys PlayerKeys) error {
	if err := ValidateShirtNumber(op, c.Number); err != nil {
		return err
	}
	number := strings.TrimSpace(c.Number)
	sig := SubTeamSignature(c.SubTeam)

	for _, rec := range players {
		if rec.String(keys.TeamKey) != c.TeamID {
			continue
		}
		if SubTeamSignature(rec.Data[keys.SubTeamKey]) != sig {
			continue
		}
		if strings.TrimSpace(rec.String(keys.NumberKey)) == number {
			return domain.Conflict(op, "This shirt number is already taken in your age group team. Please choose a different number.")
		}
	}
	return nil
}
