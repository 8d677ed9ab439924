package evaluation

// orderedResults are the results that own message sets
var orderedResults = []Result{Pass, Warn, Undetermined, Fail}

// absorb returns a copy of e with the messages o holds for r, plus the
// molecular events and missing-data flag of o.
func (e Evaluation) absorb(o Evaluation, r Result) Evaluation {
	return e.absorbMessages(o, r).absorbEvents(o)
}

func (e Evaluation) absorbEvents(o Evaluation) Evaluation {
	e.InclusionMolecularEvents = e.InclusionMolecularEvents.Union(o.InclusionMolecularEvents)
	e.ExclusionMolecularEvents = e.ExclusionMolecularEvents.Union(o.ExclusionMolecularEvents)
	e.IsMissingMolecularResultForEvaluation = e.IsMissingMolecularResultForEvaluation || o.IsMissingMolecularResultForEvaluation
	return e
}

func (e Evaluation) absorbMessages(o Evaluation, r Result) Evaluation {
	return e.withMessages(r, e.Messages(r).union(o.Messages(r)))
}

func split(evaluations []Evaluation) (ordered []Evaluation, results []Result) {
	for _, e := range evaluations {
		if e.Result.IsOrdered() {
			ordered = append(ordered, e)
			results = append(results, e.Result)
		}
	}
	return ordered, results
}

// unevaluated is what a combinator yields when none of its children
// produced an ordered result.
func unevaluated() Evaluation {
	return Recoverable(Undetermined,
		"None of the combined criteria could be evaluated",
		"Criteria not evaluated")
}

// And combines child evaluations of a conjunction. The result is the worst
// child result; it is recoverable only if every child at that level is.
// Messages come from the children at the worst level. A recoverable FAIL
// additionally surfaces the WARN and UNDETERMINED messages of the other
// children. Sentinel children are skipped.
func And(evaluations ...Evaluation) Evaluation {
	ordered, results := split(evaluations)
	worst, ok := Worst(results...)
	if !ok {
		return unevaluated()
	}

	combined := Evaluation{Result: worst, Recoverable: true}
	for _, e := range ordered {
		if e.Result != worst {
			continue
		}
		combined.Recoverable = combined.Recoverable && e.Recoverable
		combined = combined.absorb(e, worst)
	}

	if worst == Fail && combined.Recoverable {
		for _, e := range ordered {
			if e.Result == worst {
				continue
			}
			combined = combined.absorbMessages(e, Warn).absorbMessages(e, Undetermined)
		}
	}
	return combined
}

// Or combines child evaluations of a disjunction. The result is the best
// child result; it is recoverable if any child at that level is.
// Messages come from the children at the best level. Sentinel children are
// skipped.
func Or(evaluations ...Evaluation) Evaluation {
	ordered, results := split(evaluations)
	best, ok := Best(results...)
	if !ok {
		return unevaluated()
	}

	combined := Evaluation{Result: best}
	for _, e := range ordered {
		if e.Result != best {
			continue
		}
		combined.Recoverable = combined.Recoverable || e.Recoverable
		combined = combined.absorb(e, best)
	}
	return combined
}

// Not inverts PASS and FAIL, moving the messages along. Every other result
// passes through unchanged. Inclusion and exclusion events swap sides, so
// Not(Not(e)) equals e.
func Not(e Evaluation) Evaluation {
	inverted := e
	switch e.Result {
	case Pass:
		inverted.Result = Fail
		inverted = inverted.withMessages(Fail, e.Messages(Pass)).withMessages(Pass, Messages{})
	case Fail:
		inverted.Result = Pass
		inverted = inverted.withMessages(Pass, e.Messages(Fail)).withMessages(Fail, Messages{})
	}
	inverted.InclusionMolecularEvents = e.ExclusionMolecularEvents
	inverted.ExclusionMolecularEvents = e.InclusionMolecularEvents
	return inverted
}

// WarnIf turns a PASS into a WARN carrying the pass messages and a FAIL into
// a silent PASS. WARN, UNDETERMINED and sentinels pass through.
func WarnIf(e Evaluation) Evaluation {
	switch e.Result {
	case Pass:
		warned := e
		warned.Result = Warn
		return warned.withMessages(Warn, e.Messages(Pass).union(e.Messages(Warn))).withMessages(Pass, Messages{})
	case Fail:
		return Evaluation{Result: Pass, Recoverable: e.Recoverable}
	}
	return e
}

// MergeWorst collapses evaluations that share one criterion reference into
// a single display evaluation. The result is the worst result in the group,
// recoverable only if every evaluation at that level is, and every message
// set is the union across the whole group. The result kind does not depend
// on the order of evaluations. Groups without ordered results keep their
// sentinel, NOT_IMPLEMENTED taking precedence over NOT_EVALUATED.
func MergeWorst(evaluations ...Evaluation) Evaluation {
	_, results := split(evaluations)
	worst, ok := Worst(results...)
	if !ok {
		worst = NotEvaluated
		for _, e := range evaluations {
			if e.Result == NotImplemented {
				worst = NotImplemented
			}
		}
	}

	merged := Evaluation{Result: worst, Recoverable: true}
	for _, e := range evaluations {
		if e.Result == worst {
			merged.Recoverable = merged.Recoverable && e.Recoverable
		}
		for _, r := range orderedResults {
			merged = merged.absorbMessages(e, r)
		}
		merged = merged.absorbEvents(e)
	}
	if len(evaluations) == 0 {
		merged.Recoverable = false
	}
	return merged
}

// IsPotentiallyEligible reports whether none of the evaluations is a hard
// exclusion.
func IsPotentiallyEligible(evaluations []Evaluation) bool {
	for _, e := range evaluations {
		if e.IsExcluding() {
			return false
		}
	}
	return true
}
