package review

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_Compose(t *testing.T) {
	tests := []struct {
		name     string
		category string
		outcome  Outcome
		want     string
	}{
		{"rating agree", "Mechanical Sweeping", Outcome{Action: Agree, Rating: 70}, "Agreed - 70% rating"},
		{"rating agree with comment", "Mechanical Sweeping", Outcome{Action: Agree, Rating: 100, Comment: "clean"}, "Agreed - 100% rating - clean"},
		{"catalog spelling", "Mannual Sweeping", Outcome{Action: Agree, Rating: 30}, "Agreed - 30% rating"},
		{"plain agree", "Door To Door", Outcome{Action: Agree}, "Agreed"},
		{"plain agree with comment", "Door To Door", Outcome{Action: Agree, Comment: " on time "}, "Agreed - on time"},
		{"plain agree ignores rating", "Door To Door", Outcome{Action: Agree, Rating: 50}, "Agreed"},
		{"disagree", "Door To Door", Outcome{Action: Disagree, Comment: "too slow"}, "Disagreed - too slow"},
		{"rating disagree", "Manual Sweeping", Outcome{Action: Disagree, Rating: 60, Comment: "patchy"}, "Disagreed - patchy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.outcome.Validate(tt.category))
			assert.Equal(t, tt.want, tt.outcome.Compose(tt.category))
		})
	}
}

func TestOutcome_Validate(t *testing.T) {
	tests := []struct {
		name     string
		category string
		outcome  Outcome
		field    string
	}{
		{"no action", "Door To Door", Outcome{}, "action"},
		{"disagree blank comment", "Door To Door", Outcome{Action: Disagree, Comment: "   "}, "comment"},
		{"rating disagree blank comment", "Mechanical Sweeping", Outcome{Action: Disagree, Rating: 50}, "comment"},
		{"rating agree zero", "Mechanical Sweeping", Outcome{Action: Agree}, "rating"},
		{"rating agree off-step", "Mechanical Sweeping", Outcome{Action: Agree, Rating: 75}, "rating"},
		{"rating agree too high", "Manual Sweeping", Outcome{Action: Agree, Rating: 110}, "rating"},
		{"rating agree negative", "Manual Sweeping", Outcome{Action: Agree, Rating: -10}, "rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.outcome.Validate(tt.category)
			var verr *ValidationError
			if assert.True(t, errors.As(err, &verr), "got %v", err) {
				assert.Equal(t, tt.field, verr.Field)
				assert.Contains(t, verr.Error(), tt.field)
			}
		})
	}
}

func TestIsRatingCategory(t *testing.T) {
	for _, c := range []string{"Manual Sweeping", "Mannual Sweeping", "Mechanical Sweeping"} {
		assert.True(t, IsRatingCategory(c), c)
	}
	for _, c := range []string{"Door To Door", "Garbage Collection", "Water Sprinkling", "Emergency Task", "",
		"mechanical sweeping", " Mechanical Sweeping", "MANUAL SWEEPING"} {
		assert.False(t, IsRatingCategory(c), c)
	}
}

func TestValidRating(t *testing.T) {
	for _, p := range Percentages {
		assert.True(t, ValidRating(p), "%d", p)
	}
	for _, p := range []int{0, 5, 15, 101, 110, -10} {
		assert.False(t, ValidRating(p), "%d", p)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no_action_chosen", NoActionChosen.String())
	assert.Equal(t, "awaiting_input", AwaitingInput.String())
	assert.Equal(t, "submitted", Submitted.String())
	assert.Equal(t, "state(9)", State(9).String())
}
