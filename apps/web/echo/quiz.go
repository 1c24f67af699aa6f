package echoweb

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/quiz"
)

type quizApi struct {
	bank        *quiz.Bank
	revealDelay time.Duration
}

func registerQuizRoutes(e *echo.Echo, deps ServerDeps) {
	h := quizApi{bank: deps.Library.Quiz, revealDelay: deps.Conf.Quiz.RevealDelay}

	g := e.Group("/quiz")
	g.GET("", h.show)
	g.POST("/start", h.start)
	g.POST("/select", h.selectOption)
	g.POST("/next", h.next)
	g.POST("/quit", h.quit)
}

type quizPage struct {
	Engine     *quiz.Engine
	Subjects   []quiz.Subject
	Subject    quiz.Subject
	Question   quiz.Question
	Number     int
	Elapsed    time.Duration
	RefreshIn  time.Duration // until a revealed answer gives way; 0 when nothing is pending
	QuitPrompt string
}

// engine returns the quiz state of the session, creating it on first use.
func (h *quizApi) engine(ctx echo.Context) *quiz.Engine {
	s := getSession(ctx)
	if s.Quiz == nil {
		e := quiz.NewEngine(h.revealDelay)
		s.Quiz = &e
	}
	return s.Quiz
}

func (h *quizApi) show(ctx echo.Context) error {
	t := now(ctx)
	e := h.engine(ctx)
	e.Tick(t)

	page := quizPage{
		Engine:     e,
		Subjects:   h.bank.Subjects,
		Elapsed:    e.Elapsed(t),
		QuitPrompt: quiz.QuitConfirmation,
	}
	if e.Step != quiz.StepSubjectSelection {
		page.Subject, _ = h.bank.Subject(e.Subject)
	}
	if q, ok := e.Current(); ok {
		page.Question = q
		page.Number = e.Index + 1
	}
	if at, ok := e.AdvanceAt(); ok {
		page.RefreshIn = at.Sub(t)
	}
	return render(ctx, http.StatusOK, "quiz", view{Title: "Quiz", Data: page})
}

func (h *quizApi) start(ctx echo.Context) error {
	subjectID := core.CleanString(ctx.FormValue("subject"), true)
	subject, err := h.bank.Subject(subjectID)
	if err != nil {
		return errHttpNotFound
	}
	if err := h.engine(ctx).Start(subject.ID, subject.Questions, now(ctx)); err != nil {
		if errors.Cause(err) == quiz.ErrNoQuestions {
			toastInfo(ctx, quiz.NoQuestionsMessage(subject.ID))
			return seeOther(ctx, "/quiz")
		}
		return errors.Wrap(err, "starting quiz")
	}
	return seeOther(ctx, "/quiz")
}

func (h *quizApi) selectOption(ctx echo.Context) error {
	e := h.engine(ctx)
	e.Tick(now(ctx))
	if err := h.choose(e, ctx.FormValue("option")); err != nil {
		return err
	}
	return seeOther(ctx, "/quiz")
}

// next selects the submitted option (if any) and reveals the answer.
func (h *quizApi) next(ctx echo.Context) error {
	t := now(ctx)
	e := h.engine(ctx)
	e.Tick(t)

	if opt := ctx.FormValue("option"); opt != "" {
		if err := h.choose(e, opt); err != nil {
			return err
		}
	}
	if _, err := e.Next(t); err != nil {
		switch errors.Cause(err) {
		case quiz.ErrNoSelection:
			toastWarning(ctx, "Please select an answer first.")
		case quiz.ErrRevealing:
		case quiz.ErrNotInQuiz:
			return seeOther(ctx, "/quiz")
		default:
			return errors.Wrap(err, "submitting answer")
		}
	}
	return seeOther(ctx, "/quiz")
}

func (h *quizApi) choose(e *quiz.Engine, option string) error {
	err := e.Select(option)
	switch errors.Cause(err) {
	case nil, quiz.ErrRevealing, quiz.ErrNotInQuiz:
		return nil
	case quiz.ErrInvalidOption:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return errors.Wrap(err, "selecting option")
}

func (h *quizApi) quit(ctx echo.Context) error {
	h.engine(ctx).Quit()
	return seeOther(ctx, "/quiz")
}
