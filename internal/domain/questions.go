package domain

// AptitudeQuestion is a round-2 multiple-choice question. Answer is the index
// of the correct option.
type AptitudeQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// CodingChallenge is a round-2 coding task. Submissions are stored for manual
// review; the service never grades them.
type CodingChallenge struct {
	Type        QuestionType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	StarterCode string       `json:"starterCode"`
}

// Round2Set is the complete round-2 question bank: one aptitude question per
// aptitude slot (in flow order) and one coding challenge per challenge type.
type Round2Set struct {
	Aptitude []AptitudeQuestion `json:"aptitude"`
	Coding   []CodingChallenge  `json:"coding"`
}

// AptitudeFor returns the aptitude question backing a slot.
func (s Round2Set) AptitudeFor(slot int) (AptitudeQuestion, bool) {
	idx := AptitudeIndex(slot)
	if idx < 0 || idx >= len(s.Aptitude) {
		return AptitudeQuestion{}, false
	}
	return s.Aptitude[idx], true
}

// ChallengeFor returns the coding challenge of the given type.
func (s Round2Set) ChallengeFor(t QuestionType) (CodingChallenge, bool) {
	for _, c := range s.Coding {
		if c.Type == t {
			return c, true
		}
	}
	return CodingChallenge{}, false
}

// CodeBlock is one ordered fragment of a round-3 question. Puzzle blocks carry
// options and a correct answer index; plain blocks are display-only.
type CodeBlock struct {
	Index    int      `json:"index"`
	Code     string   `json:"code"`
	IsPuzzle bool     `json:"isPuzzle"`
	Options  []string `json:"options,omitempty"`
	Answer   int      `json:"answer,omitempty"`
	Points   int      `json:"points,omitempty"` // defaults to 1 if zero
}

// Round3Question is one puzzle question decomposed into ordered code blocks.
type Round3Question struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Blocks []CodeBlock `json:"blocks"`
}

// QuestionOrder is a named permutation of the round-3 question sequence,
// assigned per team to reduce answer sharing.
type QuestionOrder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Sequence []int  `json:"sequence"`
}

// Round3Set is the complete round-3 question bank.
type Round3Set struct {
	Orders    []QuestionOrder  `json:"questionOrders"`
	Questions []Round3Question `json:"questions"`
}

// OrderByID looks up a question order.
func (s Round3Set) OrderByID(id string) (QuestionOrder, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return QuestionOrder{}, false
}

// QuestionAt resolves the question shown at position idx of the given order.
func (s Round3Set) QuestionAt(order QuestionOrder, idx int) (Round3Question, bool) {
	if idx < 0 || idx >= len(order.Sequence) {
		return Round3Question{}, false
	}
	qi := order.Sequence[idx]
	if qi < 0 || qi >= len(s.Questions) {
		return Round3Question{}, false
	}
	return s.Questions[qi], true
}
