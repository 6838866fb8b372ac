package engine

// MatchKind says whether a candidate sits at the typed position or deeper.
type MatchKind int

const (
	// PerfectMatch means no further codes are needed.
	PerfectMatch MatchKind = iota
	// PrefixMatch means the candidate needs RemainingCodes to be typed.
	PrefixMatch
)

func (m MatchKind) String() string {
	if m == PerfectMatch {
		return "perfect"
	}
	return "prefix"
}

// Candidate is one ranked completion.
type Candidate struct {
	Text           string
	RemainingCodes []rune
	Match          MatchKind
}

// NewCandidate derives the match kind from the remaining codes.
func NewCandidate(text string, remaining []rune) Candidate {
	match := PerfectMatch
	if len(remaining) > 0 {
		match = PrefixMatch
	}
	return Candidate{Text: text, RemainingCodes: remaining, Match: match}
}

// Message renders the candidate as plain text: the text followed by the
// codes still to type.
func (c Candidate) Message() string {
	return c.Text + string(c.RemainingCodes)
}

// PerfectOnly returns the perfect matches of candidates, keeping their order.
func PerfectOnly(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Match == PerfectMatch {
			out = append(out, c)
		}
	}
	return out
}
