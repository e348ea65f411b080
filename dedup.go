package imagegrab

// DefaultDedupThreshold is the maximum Hamming distance between two
// fingerprints at which the images are treated as the same picture.
const DefaultDedupThreshold = 10

// DuplicateTracker remembers the fingerprints accepted during one session.
// It is not safe for concurrent use; create one per session.
type DuplicateTracker struct {
	threshold int
	seen      []Fingerprint
}

// NewDuplicateTracker returns an empty tracker. A negative threshold
// selects DefaultDedupThreshold; zero matches identical fingerprints only.
func NewDuplicateTracker(threshold int) *DuplicateTracker {
	if threshold < 0 {
		threshold = DefaultDedupThreshold
	}
	return &DuplicateTracker{threshold: threshold}
}

// Threshold returns the configured match threshold.
func (t *DuplicateTracker) Threshold() int { return t.threshold }

// Len returns the number of recorded fingerprints.
func (t *DuplicateTracker) Len() int { return len(t.seen) }

// IsDuplicate reports whether fp is within the threshold of any recorded fingerprint.
func (t *DuplicateTracker) IsDuplicate(fp Fingerprint) bool {
	for _, s := range t.seen {
		if Distance(fp, s) <= t.threshold {
			return true
		}
	}
	return false
}

// Record appends fp unconditionally. Callers check IsDuplicate first.
func (t *DuplicateTracker) Record(fp Fingerprint) {
	t.seen = append(t.seen, fp)
}

// Reset forgets every recorded fingerprint.
func (t *DuplicateTracker) Reset() {
	clear(t.seen)
	t.seen = t.seen[:0]
}
