package evaluation

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome kind of evaluating an eligibility function
type Result string

const (
	Pass           Result = "PASS"
	Warn           Result = "WARN"
	Undetermined   Result = "UNDETERMINED"
	Fail           Result = "FAIL"
	NotEvaluated   Result = "NOT_EVALUATED"
	NotImplemented Result = "NOT_IMPLEMENTED"
)

// rank orders the merge-relevant results from best (0) to worst.
// Sentinel results have no rank.
var rank = map[Result]int{
	Pass:         0,
	Warn:         1,
	Undetermined: 2,
	Fail:         3,
}

// Results lists every result kind in display order
var Results = []Result{Pass, Warn, Undetermined, Fail, NotEvaluated, NotImplemented}

// IsOrdered reports whether r takes part in the worst/best ordering.
// NOT_EVALUATED and NOT_IMPLEMENTED are sentinels produced only by leaves.
func (r Result) IsOrdered() bool {
	_, ok := rank[r]
	return ok
}

// IsWorseThan reports whether r is strictly worse than other.
// Sentinels are never worse or better than anything.
func (r Result) IsWorseThan(other Result) bool {
	a, okA := rank[r]
	b, okB := rank[other]
	return okA && okB && a > b
}

// IsBetterThan reports whether r is strictly better than other
func (r Result) IsBetterThan(other Result) bool {
	return other.IsWorseThan(r)
}

// Worst returns the worst ordered result, and false when none of the
// given results is ordered.
func Worst(results ...Result) (Result, bool) {
	var worst Result
	found := false
	for _, r := range results {
		if !r.IsOrdered() {
			continue
		}
		if !found || r.IsWorseThan(worst) {
			worst = r
			found = true
		}
	}
	return worst, found
}

// Best returns the best ordered result, and false when none of the
// given results is ordered.
func Best(results ...Result) (Result, bool) {
	var best Result
	found := false
	for _, r := range results {
		if !r.IsOrdered() {
			continue
		}
		if !found || r.IsBetterThan(best) {
			best = r
			found = true
		}
	}
	return best, found
}

// ParseResult converts the wire name of a result into a Result
func ParseResult(s string) (Result, error) {
	for _, r := range Results {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown evaluation result %q", s)
}

// UnmarshalJSON rejects unknown result names
func (r *Result) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
