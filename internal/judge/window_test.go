package judge

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/himanishpuri/PitchMatch/internal/model"
	"github.com/stretchr/testify/assert"
)

func scoreAt(starts ...float64) model.Score {
	s := make(model.Score, len(starts))
	for i, st := range starts {
		s[i] = model.Note{ID: i, Pitch: 69, StartTime: st, EndTime: st + 0.5}
	}
	return s
}

func noteIDs(notes []model.Note) []int {
	ids := make([]int, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	return ids
}

func TestDue(t *testing.T) {
	score := scoreAt(0, 0.5, 0.75, 1.0, 2.0)

	tests := []struct {
		name  string
		ref   float64
		tolMs float64
		want  []int
	}{
		{"inclusive lower boundary", 0.25, 250, []int{0, 1}},
		{"inclusive upper boundary", 0.75, 250, []int{1, 2, 3}},
		{"default tolerance", 1.0, DefaultNoteToleranceMs, []int{3}},
		{"nothing due", 1.5, 200, []int{}},
		{"before score", -5, 200, []int{}},
		{"after score", 10, 200, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, noteIDs(Due(score, tt.ref, tt.tolMs)))
		})
	}
}

func TestDueEmptyScore(t *testing.T) {
	assert.Empty(t, Due(nil, 1, 200))
}

func TestDueMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		starts := make([]float64, 40)
		for i := range starts {
			starts[i] = math.Round(rng.Float64()*2000) / 100
		}
		sort.Float64s(starts)
		score := scoreAt(starts...)
		ref := rng.Float64() * 20
		tol := float64(rng.Intn(400))

		var want []int
		for _, n := range score {
			if math.Abs(n.StartTime*1000-ref*1000) <= tol {
				want = append(want, n.ID)
			}
		}
		if want == nil {
			want = []int{}
		}

		assert.Equal(t, want, noteIDs(Due(score, ref, tol)), "round %d", round)
	}
}
