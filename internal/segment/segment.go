package segment

// Defaults used by the pipeline. MaxChunkSeconds is the input-duration ceiling
// of the Chimege transcription API.
const (
	DefaultGapSeconds      = 0.5
	DefaultMaxChunkSeconds = 15.0
)

// Segment is one diarized speaker turn. Start and End are offsets in seconds
// into the normalized audio track, End > Start.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Chunk is a shaped segment with its transcription result attached.
type Chunk struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// MergeAdjacent collapses runs of consecutive segments that share a speaker
// and start within gap seconds of the previous segment's end. Input must be
// in temporal order. The input slice is not modified.
func MergeAdjacent(segs []Segment, gap float64) []Segment {
	merged := make([]Segment, 0, len(segs))
	if len(segs) == 0 {
		return merged
	}

	merged = append(merged, segs[0])
	for _, seg := range segs[1:] {
		last := &merged[len(merged)-1]
		if seg.Speaker == last.Speaker && seg.Start-last.End < gap {
			last.End = seg.End
		} else {
			merged = append(merged, seg)
		}
	}
	return merged
}

// SplitOversized replaces every segment longer than max seconds with
// consecutive sub-segments of at most max seconds each, keeping the original
// speaker. The final sub-segment may be shorter. Segments at or under the
// threshold pass through unchanged.
func SplitOversized(segs []Segment, max float64) []Segment {
	result := make([]Segment, 0, len(segs))
	for _, seg := range segs {
		if seg.Duration() <= max {
			result = append(result, seg)
			continue
		}

		start := seg.Start
		for start < seg.End {
			end := start + max
			if end > seg.End {
				end = seg.End
			}
			result = append(result, Segment{Speaker: seg.Speaker, Start: start, End: end})
			start = end
		}
	}
	return result
}
