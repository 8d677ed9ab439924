// Package evaluation holds the outcome of evaluating eligibility functions
// and the algebra used to combine outcomes.
//
// Evaluation values are immutable: every operation in this package returns
// a new Evaluation and never modifies its inputs.
package evaluation

import (
	"encoding/json"
	"slices"
	"sort"
)

// MessageSet is a sorted set of messages without duplicates
type MessageSet []string

// NewMessageSet builds a set from messages, dropping empty strings
func NewMessageSet(messages ...string) MessageSet {
	var set MessageSet
	for _, m := range messages {
		if m != "" {
			set = append(set, m)
		}
	}
	return set.normalize()
}

func (s MessageSet) normalize() MessageSet {
	if len(s) == 0 {
		return nil
	}
	out := slices.Clone(s)
	sort.Strings(out)
	return slices.Compact(out)
}

// Union returns a new set holding the messages of s and others
func (s MessageSet) Union(others ...MessageSet) MessageSet {
	total := len(s)
	for _, o := range others {
		total += len(o)
	}
	if total == 0 {
		return nil
	}
	merged := make(MessageSet, 0, total)
	merged = append(merged, s...)
	for _, o := range others {
		merged = append(merged, o...)
	}
	return merged.normalize()
}

// Contains reports whether message is in the set
func (s MessageSet) Contains(message string) bool {
	_, found := slices.BinarySearch(s, message)
	return found
}

// MarshalJSON writes the set as a sorted array, never null
func (s MessageSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s.normalize()))
}

// UnmarshalJSON accepts the array in any order
func (s *MessageSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = MessageSet(raw).normalize()
	return nil
}

// Messages pairs the rule-local (specific) and trial-facing (general)
// wording for one result kind.
type Messages struct {
	Specific MessageSet
	General  MessageSet
}

func (m Messages) union(o Messages) Messages {
	return Messages{
		Specific: m.Specific.Union(o.Specific),
		General:  m.General.Union(o.General),
	}
}

func (m Messages) isEmpty() bool {
	return len(m.Specific) == 0 && len(m.General) == 0
}

// Evaluation is the outcome of evaluating one eligibility function (or a
// sub-tree of one) against a patient record.
type Evaluation struct {
	Result      Result `json:"result"`
	Recoverable bool   `json:"recoverable"`

	InclusionMolecularEvents MessageSet `json:"inclusionMolecularEvents"`
	ExclusionMolecularEvents MessageSet `json:"exclusionMolecularEvents"`

	PassSpecificMessages         MessageSet `json:"passSpecificMessages"`
	PassGeneralMessages          MessageSet `json:"passGeneralMessages"`
	WarnSpecificMessages         MessageSet `json:"warnSpecificMessages"`
	WarnGeneralMessages          MessageSet `json:"warnGeneralMessages"`
	UndeterminedSpecificMessages MessageSet `json:"undeterminedSpecificMessages"`
	UndeterminedGeneralMessages  MessageSet `json:"undeterminedGeneralMessages"`
	FailSpecificMessages         MessageSet `json:"failSpecificMessages"`
	FailGeneralMessages          MessageSet `json:"failGeneralMessages"`

	IsMissingMolecularResultForEvaluation bool `json:"isMissingMolecularResultForEvaluation"`
}

// Of creates a non-recoverable evaluation with one specific and one general
// message for the given result. Empty messages are skipped, and sentinel
// results carry no messages.
func Of(result Result, specific, general string) Evaluation {
	e := Evaluation{Result: result}
	return e.withMessages(result, Messages{
		Specific: NewMessageSet(specific),
		General:  NewMessageSet(general),
	})
}

// Recoverable creates a recoverable evaluation, see Of
func Recoverable(result Result, specific, general string) Evaluation {
	e := Of(result, specific, general)
	e.Recoverable = true
	return e
}

// Messages returns the message sets recorded for result r
func (e Evaluation) Messages(r Result) Messages {
	switch r {
	case Pass:
		return Messages{Specific: e.PassSpecificMessages, General: e.PassGeneralMessages}
	case Warn:
		return Messages{Specific: e.WarnSpecificMessages, General: e.WarnGeneralMessages}
	case Undetermined:
		return Messages{Specific: e.UndeterminedSpecificMessages, General: e.UndeterminedGeneralMessages}
	case Fail:
		return Messages{Specific: e.FailSpecificMessages, General: e.FailGeneralMessages}
	}
	return Messages{}
}

// withMessages returns a copy of e whose messages for r are replaced by m.
// Sentinel results have no message sets and are ignored.
func (e Evaluation) withMessages(r Result, m Messages) Evaluation {
	switch r {
	case Pass:
		e.PassSpecificMessages, e.PassGeneralMessages = m.Specific, m.General
	case Warn:
		e.WarnSpecificMessages, e.WarnGeneralMessages = m.Specific, m.General
	case Undetermined:
		e.UndeterminedSpecificMessages, e.UndeterminedGeneralMessages = m.Specific, m.General
	case Fail:
		e.FailSpecificMessages, e.FailGeneralMessages = m.Specific, m.General
	}
	return e
}

// AllSpecificMessages returns every specific message regardless of result
func (e Evaluation) AllSpecificMessages() MessageSet {
	return e.PassSpecificMessages.Union(e.WarnSpecificMessages, e.UndeterminedSpecificMessages, e.FailSpecificMessages)
}

// WithInclusionEvents returns a copy of e with the molecular events that
// made the patient potentially eligible.
func (e Evaluation) WithInclusionEvents(events ...string) Evaluation {
	e.InclusionMolecularEvents = e.InclusionMolecularEvents.Union(NewMessageSet(events...))
	return e
}

// WithExclusionEvents returns a copy of e with the molecular events that
// exclude the patient.
func (e Evaluation) WithExclusionEvents(events ...string) Evaluation {
	e.ExclusionMolecularEvents = e.ExclusionMolecularEvents.Union(NewMessageSet(events...))
	return e
}

// WithMissingMolecularResult marks e as evaluated without the molecular
// data needed for a sufficient answer.
func (e Evaluation) WithMissingMolecularResult() Evaluation {
	e.IsMissingMolecularResultForEvaluation = true
	return e
}

// IsExcluding reports whether e is a hard exclusion: a non-recoverable FAIL
func (e Evaluation) IsExcluding() bool {
	return e.Result == Fail && !e.Recoverable
}

// Equal reports whether two evaluations carry the same outcome and messages
func (e Evaluation) Equal(o Evaluation) bool {
	if e.Result != o.Result || e.Recoverable != o.Recoverable ||
		e.IsMissingMolecularResultForEvaluation != o.IsMissingMolecularResultForEvaluation {
		return false
	}
	sets := func(x Evaluation) []MessageSet {
		return []MessageSet{
			x.InclusionMolecularEvents, x.ExclusionMolecularEvents,
			x.PassSpecificMessages, x.PassGeneralMessages,
			x.WarnSpecificMessages, x.WarnGeneralMessages,
			x.UndeterminedSpecificMessages, x.UndeterminedGeneralMessages,
			x.FailSpecificMessages, x.FailGeneralMessages,
		}
	}
	a, b := sets(e), sets(o)
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
