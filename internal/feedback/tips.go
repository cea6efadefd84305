package feedback

import (
	"fmt"
	"math"
	"strings"

	"github.com/cantora-app/cantora/internal/align"
)

// DrillKind names the recommended practice drill.
type DrillKind string

const (
	// DrillRepeatSegment targets the worst-scoring segment for focused reps.
	DrillRepeatSegment DrillKind = "repeat_segment"

	// DrillSlowDown recommends practicing at reduced tempo.
	DrillSlowDown DrillKind = "slow_down"

	// DrillTimingLock recommends metronome work on entrances.
	DrillTimingLock DrillKind = "timing_lock"

	// DrillAccuracyClean is the default polish drill.
	DrillAccuracyClean DrillKind = "accuracy_clean"
)

// Drill is the single recommended next exercise for this attempt.
type Drill struct {
	Kind DrillKind `json:"kind"`
	Note string    `json:"note"`

	// TargetSegmentIndex and RepeatCount are set for repeat_segment only.
	TargetSegmentIndex int `json:"target_segment_index,omitempty"`
	RepeatCount        int `json:"repeat_count,omitempty"`
}

// tips assembles the coaching tip list. Every condition is independent and
// all applicable tips are appended; when none fires, a single positive tip
// is emitted.
func (b *Builder) tips(rep Report, res align.Result, offsetMs float64) []string {
	var tips []string

	if rep.WordAccuracyPct < b.cfg.AccuracyTipBelowPct {
		var missed []string
		for _, w := range res.Words {
			if w.Status == align.StatusMissed && len(missed) < 5 {
				missed = append(missed, w.RefWord)
			}
		}
		if len(missed) > 0 {
			tips = append(tips, "Work on the lyrics — you missed: "+strings.Join(missed, ", ")+".")
		} else {
			tips = append(tips, "Work on the lyrics — articulate each word clearly so every one lands.")
		}
	}

	if rep.TimingMeanAbsMs > b.cfg.TimingTipAboveMs {
		tip := fmt.Sprintf("Your entrances averaged %dms off the beat — try singing along with the original a few times.",
			int(math.Round(rep.TimingMeanAbsMs)))
		if math.Abs(offsetMs) > b.cfg.OffsetNoteAboveMs {
			tip += fmt.Sprintf(" (A %dms start offset was already corrected for.)",
				int(math.Round(math.Abs(offsetMs))))
		}
		tips = append(tips, tip)
	}

	switch {
	case rep.PaceRatio > b.cfg.RushRatio:
		tips = append(tips, "You're rushing — let the backing track set the pace.")
	case rep.PaceRatio < b.cfg.DragRatio:
		tips = append(tips, "You're dragging behind the track — keep the energy up through each line.")
	}

	if len(tips) == 0 {
		tips = append(tips, "Great take — keep this one in rotation.")
	}
	return tips
}

// selectDrill picks exactly one drill by fixed priority: a weak segment
// first, then timing, then pace, then the default polish drill.
func (b *Builder) selectDrill(rep Report) Drill {
	if idx, ok := worstSegment(rep.Segments); ok && rep.Segments[idx].WordAccuracyPct < b.cfg.DrillSegmentBelowPct {
		seg := rep.Segments[idx]
		return Drill{
			Kind:               DrillRepeatSegment,
			Note:               fmt.Sprintf("Repeat %q %d times, then re-record.", seg.Text, b.cfg.DrillRepeatCount),
			TargetSegmentIndex: idx,
			RepeatCount:        b.cfg.DrillRepeatCount,
		}
	}
	if rep.TimingMeanAbsMs > b.cfg.TimingTipAboveMs {
		return Drill{
			Kind: DrillTimingLock,
			Note: "Practice the first word of each line with a metronome until entrances lock in.",
		}
	}
	if rep.PaceRatio > b.cfg.RushRatio {
		return Drill{
			Kind: DrillSlowDown,
			Note: "Run the verse at 80% speed until the phrasing feels unhurried.",
		}
	}
	return Drill{
		Kind: DrillAccuracyClean,
		Note: "Do one focused take aiming for every word clean.",
	}
}

// worstSegment returns the index of the globally lowest-scoring segment,
// preferring the earliest on ties.
func worstSegment(segs []Segment) (int, bool) {
	if len(segs) == 0 {
		return 0, false
	}
	worst := 0
	for i, s := range segs {
		if s.WordAccuracyPct < segs[worst].WordAccuracyPct {
			worst = i
		}
	}
	return worst, true
}

func incompleteTakeMessage(coverage float64) string {
	return fmt.Sprintf("Your recording ended early — only about %d%% of the verse was attempted, so unrecorded lyrics were not scored.",
		int(math.Round(coverage*100)))
}
