package detect

// Item is one labeled object reported by the detection tool
type Item struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // 0..1
}

// OutcomeKind tags which variant of Outcome holds
type OutcomeKind int

const (
	// OutcomeAbsent means the tool produced nothing usable
	OutcomeAbsent OutcomeKind = iota
	// OutcomeStructured means a detections payload was found
	OutcomeStructured
	// OutcomeRawText means the parser fell back to text
	OutcomeRawText
)

// String returns the kind name used in logs
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStructured:
		return "structured"
	case OutcomeRawText:
		return "raw_text"
	default:
		return "absent"
	}
}

// Outcome is the parsed result of one detection run. Exactly one of the
// variants holds: Structured(Items), RawText(Text) or Absent.
type Outcome struct {
	Kind  OutcomeKind
	Items []Item
	Text  string
}

// Structured builds a structured outcome
func Structured(items []Item) Outcome {
	if items == nil {
		items = []Item{}
	}
	return Outcome{Kind: OutcomeStructured, Items: items}
}

// RawText builds a raw text outcome
func RawText(text string) Outcome {
	return Outcome{Kind: OutcomeRawText, Text: text}
}

// Absent builds an empty outcome
func Absent() Outcome {
	return Outcome{Kind: OutcomeAbsent}
}

// Degraded reports whether the parser had to fall back from a detections payload
func (o Outcome) Degraded() bool {
	return o.Kind != OutcomeStructured
}
