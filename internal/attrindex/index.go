package attrindex

import (
	"sort"
	"strings"
)

// Index is the read-only, in-memory view of the reference tables. It is safe
// for concurrent use because nothing mutates it after New returns.
type Index struct {
	athletes  map[string]*Athlete
	byName    []*Athlete
	teams     map[string]*Team
	teamOrder []*Team
	colleges  []string
	carriers  map[Kind]map[string][]*Athlete
}

// New builds an index. Athletes without an id are skipped; later duplicates win.
func New(athletes []*Athlete, teams []*Team) *Index {
	x := &Index{
		athletes: make(map[string]*Athlete, len(athletes)),
		teams:    make(map[string]*Team, len(teams)),
		carriers: make(map[Kind]map[string][]*Athlete, len(AttributeKinds)),
	}
	for _, k := range AttributeKinds {
		x.carriers[k] = make(map[string][]*Athlete)
	}
	for _, a := range athletes {
		if a == nil || strings.TrimSpace(a.ID) == "" {
			continue
		}
		x.athletes[a.ID] = a
	}
	colleges := make(map[string]struct{})
	for _, a := range x.athletes {
		x.byName = append(x.byName, a)
		for _, k := range AttributeKinds {
			seen := make(map[string]struct{})
			for _, v := range a.Values(k) {
				key := normalize(v)
				if key == "" {
					continue
				}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				x.carriers[k][key] = append(x.carriers[k][key], a)
			}
		}
		for _, c := range a.Colleges {
			if usable(c) {
				colleges[strings.TrimSpace(c)] = struct{}{}
			}
		}
	}
	sort.Slice(x.byName, func(i, j int) bool {
		if x.byName[i].Name != x.byName[j].Name {
			return x.byName[i].Name < x.byName[j].Name
		}
		return x.byName[i].ID < x.byName[j].ID
	})
	for _, t := range teams {
		if t == nil || strings.TrimSpace(t.ID) == "" {
			continue
		}
		x.teams[t.ID] = t
	}
	for _, t := range x.teams {
		x.teamOrder = append(x.teamOrder, t)
	}
	sort.Slice(x.teamOrder, func(i, j int) bool { return x.teamOrder[i].Name < x.teamOrder[j].Name })
	for c := range colleges {
		x.colleges = append(x.colleges, c)
	}
	sort.Strings(x.colleges)
	return x
}

// Athlete looks up an athlete by id.
func (x *Index) Athlete(id string) (*Athlete, bool) {
	if x == nil {
		return nil, false
	}
	a, ok := x.athletes[strings.TrimSpace(id)]
	return a, ok
}

// Team looks up a team by id.
func (x *Index) Team(id string) (*Team, bool) {
	if x == nil {
		return nil, false
	}
	t, ok := x.teams[strings.TrimSpace(id)]
	return t, ok
}

// Carriers returns every athlete whose k array contains value (case-insensitive).
func (x *Index) Carriers(k Kind, value string) []*Athlete {
	if x == nil {
		return nil
	}
	byValue, ok := x.carriers[k]
	if !ok {
		return nil
	}
	return byValue[normalize(value)]
}

// AnyCarrier reports whether at least one athlete carries the attribute value.
func (x *Index) AnyCarrier(k Kind, value string) bool {
	return len(x.Carriers(k, value)) > 0
}

// Athletes returns all athletes ordered by name.
func (x *Index) Athletes() []*Athlete { return x.byName }

// Teams returns all teams ordered by name.
func (x *Index) Teams() []*Team { return x.teamOrder }

// Colleges returns the sorted distinct college names, without placeholders.
func (x *Index) Colleges() []string { return x.colleges }

// Size returns the athlete and team counts.
func (x *Index) Size() (athletes, teams int) {
	if x == nil {
		return 0, 0
	}
	return len(x.athletes), len(x.teams)
}

// SearchAthletes returns athletes whose name contains q, case-insensitive.
func (x *Index) SearchAthletes(q string, limit int) []*Athlete {
	q = normalize(q)
	if q == "" || x == nil {
		return nil
	}
	var out []*Athlete
	for _, a := range x.byName {
		if strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// SearchTeams returns teams whose name contains q, case-insensitive.
func (x *Index) SearchTeams(q string, limit int) []*Team {
	q = normalize(q)
	if q == "" || x == nil {
		return nil
	}
	var out []*Team
	for _, t := range x.teamOrder {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// SearchColleges returns college names containing q, case-insensitive.
func (x *Index) SearchColleges(q string, limit int) []string {
	q = normalize(q)
	if q == "" || x == nil {
		return nil
	}
	var out []string
	for _, c := range x.colleges {
		if strings.Contains(strings.ToLower(c), q) {
			out = append(out, c)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
