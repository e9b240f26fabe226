// Package model contains domain models passed between layers.
package model

// Credentials are the three values read from a portal QR code.
type Credentials struct {
	Jeton string // one-shot token
	Login string // account login bound to the token
	URL   string // portal instance URL
}

// Period is a grading term exposed by the portal.
type Period struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Evaluation groups the skills assessed in one evaluation of a period.
type Evaluation struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Skills  []Skill `json:"skills"`
}

// Skill is a single assessed competency.
type Skill struct {
	Level       string  `json:"level"`       // qualitative label, e.g. "Très bonne maîtrise"
	Coefficient float64 `json:"coefficient"` // weight applied to the level points
	Pillar      *Pillar `json:"pillar,omitempty"`
}

// Pillar carries the category tags a skill is aggregated under.
type Pillar struct {
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
}

// Prefixes returns the non-empty category prefixes of the skill, in order.
// Duplicates are kept: each occurrence counts once in aggregation.
func (s Skill) Prefixes() []string {
	if s.Pillar == nil || len(s.Pillar.Prefixes) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Pillar.Prefixes))
	for _, p := range s.Pillar.Prefixes {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
