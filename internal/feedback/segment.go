package feedback

import (
	"fmt"
	"math"
	"strings"

	"github.com/cantora-app/cantora/internal/align"
	"github.com/cantora-app/cantora/pkg/types"
)

// rawSegment is a segment before scoring: a text span on the reference
// timeline.
type rawSegment struct {
	text  string
	start float64
	end   float64
}

// segment partitions the reference words into raw segments: one per lyric
// line when line boundaries are known, otherwise greedy pause/length
// bucketing. Either path ends with a backward merge of too-short segments.
func (b *Builder) segment(words []types.WordToken, lines []types.Line) []rawSegment {
	var segs []rawSegment
	if len(lines) > 0 {
		segs = b.segmentByLines(words, lines)
	} else {
		segs = b.segmentByPauses(words)
	}
	return b.mergeShort(segs)
}

// segmentByLines builds one segment per lyric line. The segment span comes
// from the line's own words' timing; lines containing no words fall back to
// their declared span.
func (b *Builder) segmentByLines(words []types.WordToken, lines []types.Line) []rawSegment {
	segs := make([]rawSegment, 0, len(lines))
	for _, line := range lines {
		var lineWords []types.WordToken
		for _, w := range words {
			if belongsToLine(w, line) {
				lineWords = append(lineWords, w)
			}
		}

		seg := rawSegment{text: line.Text, start: line.Start, end: line.End}
		if len(lineWords) > 0 {
			seg.start = lineWords[0].Start
			seg.end = lineWords[0].End
			parts := make([]string, len(lineWords))
			for i, w := range lineWords {
				parts[i] = w.Word
				if w.Start < seg.start {
					seg.start = w.Start
				}
				if w.End > seg.end {
					seg.end = w.End
				}
			}
			seg.text = strings.Join(parts, " ")
		}
		segs = append(segs, seg)
	}
	return segs
}

// belongsToLine prefers the token's own line assignment and falls back to
// containment in the line's declared span when the transcript carries no
// line indices.
func belongsToLine(w types.WordToken, line types.Line) bool {
	if w.LineIndex != types.NoLine {
		return w.LineIndex == line.Index
	}
	return w.Start >= line.Start && w.Start < line.End
}

// segmentByPauses greedily buckets consecutive reference words, flushing a
// segment at the word limit, on a long gap to the next word, or when the
// current word ends a sentence.
func (b *Builder) segmentByPauses(words []types.WordToken) []rawSegment {
	var segs []rawSegment
	var parts []string
	var start, end float64

	flush := func() {
		if len(parts) == 0 {
			return
		}
		segs = append(segs, rawSegment{text: strings.Join(parts, " "), start: start, end: end})
		parts = nil
	}

	for i, w := range words {
		if len(parts) == 0 {
			start = w.Start
		}
		parts = append(parts, w.Word)
		end = w.End

		switch {
		case len(parts) >= b.cfg.MaxWordsPerSegment:
			flush()
		case i+1 < len(words) && words[i+1].Start-w.End > b.cfg.PauseGapSec:
			flush()
		case endsSentence(w.Word):
			flush()
		}
	}
	flush()
	return segs
}

func endsSentence(word string) bool {
	w := strings.TrimSpace(word)
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}

// mergeShort absorbs segments shorter than the minimum duration into their
// predecessor, concatenating text and extending the end time. Merging only
// runs backward; a short opening segment has no predecessor and stays.
func (b *Builder) mergeShort(segs []rawSegment) []rawSegment {
	out := make([]rawSegment, 0, len(segs))
	for _, seg := range segs {
		if len(out) > 0 && seg.end-seg.start < b.cfg.MinSegmentSec {
			prev := &out[len(out)-1]
			prev.text = strings.TrimSpace(prev.text + " " + seg.text)
			if seg.end > prev.end {
				prev.end = seg.end
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// scoreSegments attaches the aligned word results falling within each
// segment's span and derives the segment scores and issue notes.
func (b *Builder) scoreSegments(segs []rawSegment, words []align.WordResult) []Segment {
	out := make([]Segment, len(segs))
	for i, seg := range segs {
		last := i == len(segs)-1
		var inSeg []align.WordResult
		for _, w := range words {
			if w.RefStart >= seg.start && (w.RefStart < seg.end || (last && w.RefStart <= seg.end)) {
				inSeg = append(inSeg, w)
			}
		}

		s := Segment{
			SegmentIndex: i,
			Text:         seg.text,
			Start:        seg.start,
			End:          seg.end,
		}
		s.WordAccuracyPct, s.TimingMeanAbsMs = b.scoreWords(inSeg)
		if len(inSeg) == 0 {
			// Nothing aligned here (e.g. a declared line past the take).
			s.WordAccuracyPct = 0
		}
		s.MainIssues = b.segmentIssues(inSeg, s.TimingMeanAbsMs)
		out[i] = s
	}
	return out
}

// segmentIssues builds the fixed-priority issue list: missed words first,
// then incorrect words while fewer than two issues exist, then a timing
// note, and a neutral encouragement when nothing applies.
func (b *Builder) segmentIssues(words []align.WordResult, timingMeanAbsMs float64) []string {
	var issues []string

	var missed []string
	for _, w := range words {
		if w.Status == align.StatusMissed && len(missed) < 4 {
			missed = append(missed, w.RefWord)
		}
	}
	if len(missed) > 0 {
		issues = append(issues, "Missed: "+strings.Join(missed, ", "))
	}

	if len(issues) < 2 {
		var wrong []string
		for _, w := range words {
			if w.Status == align.StatusIncorrect && w.User != nil && len(wrong) < 4 {
				wrong = append(wrong, w.User.Word+" → "+w.RefWord)
			}
		}
		if len(wrong) > 0 {
			issues = append(issues, "Not quite: "+strings.Join(wrong, ", "))
		}
	}

	if timingMeanAbsMs > b.cfg.TimingTipAboveMs {
		issues = append(issues, timingIssue(timingMeanAbsMs))
	}

	if len(issues) == 0 {
		issues = append(issues, "Clean — keep it up!")
	}
	return issues
}

func timingIssue(meanAbsMs float64) string {
	return fmt.Sprintf("Timing drifted here (avg %dms off the beat)", int(math.Round(meanAbsMs)))
}
