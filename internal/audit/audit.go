package audit

import "time"

// Severity classifies an audit entry.
type Severity uint16

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "WARN"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// Entry is one recorded decision or transition.
type Entry struct {
	Source    string
	SourceID  string
	Kind      string
	Outcome   string
	Reasoning string
	Context   string
	Severity  Severity
	At        time.Time
}

// Recorder persists audit entries. Record is fire-and-forget: it must
// never fail the operation that produced the entry.
type Recorder interface {
	Record(e Entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(Entry) {}
