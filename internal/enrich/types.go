package enrich

// Result is the seed-note metadata generated for one bookmark
type Result struct {
	Title         string    `json:"title"`
	CoreClaim     string    `json:"core_claim"`
	SeedQuestions [3]string `json:"seed_questions"`
	WikiLinks     []string  `json:"wiki_links"`
	Tags          []string  `json:"tags"`

	// Fallback is set when the result was derived from the text alone
	Fallback bool `json:"-"`
}

// Questions returns the non-empty seed questions in order
func (r Result) Questions() []string {
	out := make([]string, 0, len(r.SeedQuestions))
	for _, q := range r.SeedQuestions {
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}
