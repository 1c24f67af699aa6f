package quiz

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Step string

// Steps
const (
	StepSubjectSelection Step = "subject-selection"
	StepQuiz             Step = "quiz"
	StepResults          Step = "quiz-results"
)

const (
	DefaultRevealDelay = 1200 * time.Millisecond

	QuitConfirmation = "Are you sure you want to quit? Your progress will be lost."
)

var (
	ErrNoQuestions    = errors.New("no questions available")
	ErrNotInQuiz      = errors.New("no quiz in progress")
	ErrRevealing      = errors.New("answer already submitted")
	ErrNoSelection    = errors.New("select an option first")
	ErrInvalidOption  = errors.New("invalid option")
	ErrUnknownSubject = errors.New("unknown subject")
)

type Question struct {
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
	Answer   string   `json:"answer" yaml:"answer"`
}

// Reveal is the outcome of the current question, shown until the engine advances.
type Reveal struct {
	Selected string `json:"selected"`
	Answer   string `json:"answer"`
	Correct  bool   `json:"correct"`
}

// Engine is the quiz state machine: subject-selection -> quiz -> quiz-results.
// Time only moves through the `now` arguments, so no timer outlives a state.
type Engine struct {
	Step        Step          `json:"step"`
	Subject     string        `json:"subject"`
	Questions   []Question    `json:"questions"`
	Index       int           `json:"index"`
	Selected    string        `json:"selected"`
	Score       int           `json:"score"`
	Reveal      *Reveal       `json:"reveal,omitempty"`
	RevealedAt  time.Time     `json:"revealedAt"`
	RevealDelay time.Duration `json:"revealDelay"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
}

func NewEngine(revealDelay time.Duration) Engine {
	if revealDelay <= 0 {
		revealDelay = DefaultRevealDelay
	}
	return Engine{Step: StepSubjectSelection, RevealDelay: revealDelay}
}

// Start enters the quiz with the subject's questions and starts the elapsed timer.
func (e *Engine) Start(subject string, questions []Question, now time.Time) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	delay := e.RevealDelay
	*e = NewEngine(delay)
	e.Step = StepQuiz
	e.Subject = subject
	e.Questions = append([]Question(nil), questions...)
	e.StartedAt = now
	return nil
}

func (e *Engine) Current() (Question, bool) {
	if e.Step != StepQuiz || e.Index >= len(e.Questions) {
		return Question{}, false
	}
	return e.Questions[e.Index], true
}

// Select picks the option of the current question; it may be changed until Next.
func (e *Engine) Select(option string) error {
	q, ok := e.Current()
	if !ok {
		return ErrNotInQuiz
	}
	if e.Reveal != nil {
		return ErrRevealing
	}
	for _, opt := range q.Options {
		if opt == option {
			e.Selected = option
			return nil
		}
	}
	return ErrInvalidOption
}

// Next scores the selected option and reveals the answer.
// The engine advances once the reveal delay has elapsed (see Tick).
func (e *Engine) Next(now time.Time) (Reveal, error) {
	q, ok := e.Current()
	if !ok {
		return Reveal{}, ErrNotInQuiz
	}
	if e.Reveal != nil {
		return *e.Reveal, ErrRevealing
	}
	if e.Selected == "" {
		return Reveal{}, ErrNoSelection
	}
	r := Reveal{Selected: e.Selected, Answer: q.Answer, Correct: e.Selected == q.Answer}
	if r.Correct {
		e.Score++
	}
	e.Reveal = &r
	e.RevealedAt = now
	return r, nil
}

// Tick applies a pending advance whose reveal delay has elapsed: next question, or results after the last one.
func (e *Engine) Tick(now time.Time) {
	if e.Step != StepQuiz || e.Reveal == nil {
		return
	}
	if now.Before(e.RevealedAt.Add(e.RevealDelay)) {
		return
	}
	e.Reveal = nil
	e.Selected = ""
	e.RevealedAt = time.Time{}
	if e.Index < len(e.Questions)-1 {
		e.Index++
		return
	}
	e.Step = StepResults
	e.FinishedAt = now
}

// AdvanceAt is when a revealed answer gives way to the next step.
func (e *Engine) AdvanceAt() (time.Time, bool) {
	if e.Reveal == nil {
		return time.Time{}, false
	}
	return e.RevealedAt.Add(e.RevealDelay), true
}

// Quit discards all progress and goes back to the subject selection.
func (e *Engine) Quit() {
	*e = NewEngine(e.RevealDelay)
}

// Elapsed is the time spent in the quiz, in whole seconds; it stops when the quiz finishes.
func (e *Engine) Elapsed(now time.Time) time.Duration {
	if e.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !e.FinishedAt.IsZero() {
		end = e.FinishedAt
	}
	d := end.Sub(e.StartedAt)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

func (e *Engine) Total() int {
	return len(e.Questions)
}

// Percentage is round(score/total*100).
func (e *Engine) Percentage() int {
	if len(e.Questions) == 0 {
		return 0
	}
	return int(math.Round(float64(e.Score) / float64(len(e.Questions)) * 100))
}

// Feedback returns the canned message of a percentage tier.
func Feedback(pct int) string {
	switch {
	case pct >= 80:
		return "Excellent Work! You're a true pro."
	case pct >= 50:
		return "Good Job! Keep practicing to master it."
	default:
		return "Keep Trying! Every attempt is a step forward."
	}
}

// FormatElapsed formats a duration as mm:ss.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// NoQuestionsMessage is shown when a subject has no questions yet.
func NoQuestionsMessage(subject string) string {
	return fmt.Sprintf("Sorry, no questions available for %s yet!", strings.ToUpper(subject))
}
