package attrindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind names what a submitted value refers to: an athlete or one of the
// three linkable attributes.
type Kind string

const (
	KindPlayer  Kind = "player"
	KindNumber  Kind = "number"
	KindTeam    Kind = "team"
	KindCollege Kind = "college"
)

// AttributeKinds lists the kinds that link athletes together, in lookup order.
var AttributeKinds = []Kind{KindNumber, KindTeam, KindCollege}

// linkArrays maps each attribute kind to the athlete array it links through.
var linkArrays = map[Kind]func(*Athlete) []string{
	KindNumber:  func(a *Athlete) []string { return a.Numbers },
	KindTeam:    func(a *Athlete) []string { return a.Teams },
	KindCollege: func(a *Athlete) []string { return a.Colleges },
}

// ParseKind accepts the wire names (and their plural forms).
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "players":
		return KindPlayer, true
	case "number", "numbers":
		return KindNumber, true
	case "team", "teams":
		return KindTeam, true
	case "college", "colleges":
		return KindCollege, true
	default:
		return "", false
	}
}

// IsAttribute reports whether k is number, team or college.
func (k Kind) IsAttribute() bool {
	_, ok := linkArrays[k]
	return ok
}

// Label is the human name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindPlayer:
		return "Player Name"
	case KindNumber:
		return "Jersey Number"
	case KindTeam:
		return "Team"
	case KindCollege:
		return "College"
	default:
		if k == "" {
			return "N/A"
		}
		return string(k)
	}
}

// Athlete is immutable reference data. Callers must not mutate the slices.
type Athlete struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	League    string     `json:"league"`
	StartYear FlexString `json:"start_year"`
	EndYear   FlexString `json:"end_year"`
	Teams     []string   `json:"teams"`
	Numbers   FlexList   `json:"numbers"`
	Colleges  []string   `json:"colleges"`
}

// Values returns the link array for an attribute kind; nil for KindPlayer.
func (a *Athlete) Values(k Kind) []string {
	if a == nil {
		return nil
	}
	get, ok := linkArrays[k]
	if !ok {
		return nil
	}
	return get(a)
}

// Has reports whether value appears in the athlete's array for k, ignoring case
// and surrounding space.
func (a *Athlete) Has(k Kind, value string) bool {
	want := normalize(value)
	if want == "" {
		return false
	}
	for _, v := range a.Values(k) {
		if normalize(v) == want {
			return true
		}
	}
	return false
}

// Match returns the first attribute kind whose array carries value.
func (a *Athlete) Match(value string) (Kind, bool) {
	for _, k := range AttributeKinds {
		if a.Has(k, value) {
			return k, true
		}
	}
	return "", false
}

// Linkable reports whether the athlete has at least one usable attribute value.
// Placeholder colleges ("none", "-") do not count.
func (a *Athlete) Linkable() bool {
	for _, k := range AttributeKinds {
		for _, v := range a.Values(k) {
			if usable(v) {
				return true
			}
		}
	}
	return false
}

// Team is immutable reference data.
type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	League string `json:"league,omitempty"`
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Usable reports whether an attribute value is a real value rather than a
// placeholder such as "None" or "-".
func Usable(s string) bool { return usable(s) }

func usable(s string) bool {
	switch normalize(s) {
	case "", "none", "-":
		return false
	default:
		return true
	}
}

// FlexString decodes a JSON string or number into its textual form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s, err := flexDecode(b)
	if err != nil {
		return err
	}
	*f = FlexString(s)
	return nil
}

// FlexList decodes a JSON array of strings and/or numbers.
type FlexList []string

func (f *FlexList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, err := flexDecode(r)
		if err != nil {
			return err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

func flexDecode(b []byte) (string, error) {
	if string(b) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(b))
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
