package judge

import (
	"sort"

	"github.com/himanishpuri/PitchMatch/internal/model"
)

// DefaultNoteToleranceMs is the half-width of the expectation window.
const DefaultNoteToleranceMs = 200.0

// Due returns the notes whose start lies within toleranceMs of refTime,
// boundaries inclusive, in score order. The score must be sorted by start.
func Due(score model.Score, refTime, toleranceMs float64) []model.Note {
	if len(score) == 0 {
		return nil
	}
	refMs := refTime * 1000

	first := sort.Search(len(score), func(i int) bool {
		return score[i].StartTime*1000-refMs >= -toleranceMs
	})

	var due []model.Note
	for i := first; i < len(score); i++ {
		if score[i].StartTime*1000-refMs > toleranceMs {
			break
		}
		due = append(due, score[i])
	}
	return due
}
