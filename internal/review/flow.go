// Package review implements the per-task agree/disagree interaction that turns
// a user's choice into the comment recorded on the task.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"field-review/backend/internal/models"
)

type Action string

const (
	Agree    Action = "agree"
	Disagree Action = "disagree"
)

func (a Action) Valid() bool {
	return a == Agree || a == Disagree
}

type State int

const (
	NoActionChosen State = iota
	ActionChosen
	AwaitingInput
	Submitted
)

func (s State) String() string {
	switch s {
	case NoActionChosen:
		return "no_action_chosen"
	case ActionChosen:
		return "action_chosen"
	case AwaitingInput:
		return "awaiting_input"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadySubmitted = errors.New("review already submitted")
	ErrTaskReviewed     = errors.New("task already reviewed")
)

// Committer records a composed review against a pending task.
type Committer interface {
	CommitReview(id models.TaskID, comment string) (models.Task, error)
}

// Flow is one review interaction for one task. Validation failures keep the
// flow re-enterable; the first Submit that passes validation is the only one
// that reaches the Committer.
type Flow struct {
	mu        sync.Mutex
	task      models.Task
	committer Committer
	state     State
	action    Action
	rating    int
	comment   string
	commitErr error
}

func NewFlow(task models.Task, committer Committer) (*Flow, error) {
	if task.Complete {
		return nil, fmt.Errorf("task %s: %w", task.ID, ErrTaskReviewed)
	}
	return &Flow{task: task, committer: committer, state: NoActionChosen}, nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// RequiresRating reports whether the flow uses the percentage agree protocol.
func (f *Flow) RequiresRating() bool {
	return IsRatingCategory(f.task.Category)
}

// Choose selects agree or disagree. The choice can be changed until the flow
// is submitted.
func (f *Flow) Choose(action Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitted {
		return ErrAlreadySubmitted
	}
	if !action.Valid() {
		return &ValidationError{Field: "action", Message: "Please select Agree or Disagree before submitting."}
	}

	f.action = action
	f.state = ActionChosen
	if f.needsInput() {
		f.state = AwaitingInput
	}
	return nil
}

// SetRating records the agree percentage. Range is checked at submit time so
// an out-of-range value is reported alongside the other input problems.
func (f *Flow) SetRating(percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitted {
		return ErrAlreadySubmitted
	}
	f.rating = percent
	return nil
}

func (f *Flow) SetComment(comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitted {
		return ErrAlreadySubmitted
	}
	f.comment = comment
	return nil
}

// Submit validates the input, composes the comment and commits it. A failed
// commit is not retried; the flow stays Submitted and later calls return
// ErrAlreadySubmitted.
func (f *Flow) Submit(ctx context.Context) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Submitted {
		if f.commitErr != nil {
			return models.Task{}, fmt.Errorf("%w: %v", ErrAlreadySubmitted, f.commitErr)
		}
		return models.Task{}, ErrAlreadySubmitted
	}
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}

	outcome := Outcome{Action: f.action, Rating: f.rating, Comment: f.comment}
	if err := outcome.Validate(f.task.Category); err != nil {
		return models.Task{}, err
	}

	f.state = Submitted
	task, err := f.committer.CommitReview(f.task.ID, outcome.Compose(f.task.Category))
	if err != nil {
		f.commitErr = err
		return models.Task{}, err
	}
	return task, nil
}

// needsInput reports whether the chosen action has mandatory fields.
func (f *Flow) needsInput() bool {
	return f.action == Disagree || IsRatingCategory(f.task.Category)
}

// Outcome is the transient result of a review interaction.
type Outcome struct {
	Action  Action
	Rating  int
	Comment string
}

// Validate checks the outcome against the category's review protocol.
func (o Outcome) Validate(category string) error {
	if !o.Action.Valid() {
		return &ValidationError{Field: "action", Message: "Please select Agree or Disagree before submitting."}
	}

	comment := strings.TrimSpace(o.Comment)
	if o.Action == Disagree {
		if comment == "" {
			return &ValidationError{Field: "comment", Message: "Please add a comment before submitting."}
		}
		return nil
	}

	// Ratings outside the rating categories are ignored.
	if !IsRatingCategory(category) {
		return nil
	}
	if o.Rating == 0 {
		return &ValidationError{Field: "rating", Message: "Please provide a percentage rating before submitting."}
	}
	if !ValidRating(o.Rating) {
		return &ValidationError{Field: "rating", Message: "Rating must be a multiple of 10 between 10 and 100."}
	}
	return nil
}

// Compose builds the comment stored on the task. Validate must pass first.
func (o Outcome) Compose(category string) string {
	comment := strings.TrimSpace(o.Comment)

	if o.Action == Disagree {
		return "Disagreed - " + comment
	}

	head := "Agreed"
	if IsRatingCategory(category) && o.Rating > 0 {
		head = fmt.Sprintf("Agreed - %d%% rating", o.Rating)
	}
	if comment != "" {
		return head + " - " + comment
	}
	return head
}
