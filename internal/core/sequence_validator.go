package core

import "fmt"

// SequenceValidator enforces per-source monotonic ordering of submissions.
// Not thread-safe — only accessed from the single-threaded batch executor.
type SequenceValidator struct {
	expectedNextSeq map[string]int64
	gaps            map[string]int64
	outOfOrder      map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		gaps:            make(map[string]int64),
		outOfOrder:      make(map[string]int64),
	}
}

// ValidateSequence checks sourceSequence against the expected next sequence
// for source. Stale sequences of already-processed submissions pass (the
// dedup layer answered them); stale sequences of new submissions and gaps
// are errors.
func (sv *SequenceValidator) ValidateSequence(source string, sourceSequence int64, isDuplicate bool) error {
	expected := sv.expectedNextSeq[source]

	if sourceSequence < expected {
		if isDuplicate {
			return nil
		}
		sv.outOfOrder[source]++
		return fmt.Errorf("out-of-order submission: source=%s, expected=%d, got=%d",
			source, expected, sourceSequence)
	}

	if sourceSequence == expected {
		sv.expectedNextSeq[source] = expected + 1
		return nil
	}

	sv.gaps[source]++
	return fmt.Errorf("sequence gap: source=%s, expected=%d, got=%d",
		source, expected, sourceSequence)
}

// ExpectedSequence returns the next expected sequence for source.
func (sv *SequenceValidator) ExpectedSequence(source string) int64 {
	return sv.expectedNextSeq[source]
}

// SetExpectedSequence initializes a source's sequence during recovery.
func (sv *SequenceValidator) SetExpectedSequence(source string, seq int64) {
	sv.expectedNextSeq[source] = seq
}

// Snapshot copies the per-source expected sequences for persistence.
func (sv *SequenceValidator) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for source, seq := range sv.expectedNextSeq {
		out[source] = seq
	}
	return out
}

// Gaps returns the gap count observed for source.
func (sv *SequenceValidator) Gaps(source string) int64 {
	return sv.gaps[source]
}

// OutOfOrder returns the out-of-order count observed for source.
func (sv *SequenceValidator) OutOfOrder(source string) int64 {
	return sv.outOfOrder[source]
}
