package echoweb

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
)

type loginRequest struct {
	Mode       string `form:"mode" validate:"required,oneof=student admin"`
	Identifier string `form:"identifier" validate:"required"`
	Password   string `form:"password" validate:"required"`
	Remember   bool   `form:"remember"`
}

// clean drops the password before the form is rendered back.
func (r loginRequest) clean() loginRequest {
	r.Password = ""
	return r
}

type statusRequest struct {
	Status string `form:"status" json:"status" validate:"required"`
}

// formError is a form-wide error message.
func formError(msg string) map[string]string {
	return map[string]string{"form": msg}
}

// backURL returns the local page the request came from, or fallback.
func backURL(ctx echo.Context, fallback string) string {
	ref, err := url.Parse(ctx.Request().Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || (ref.Host != "" && ref.Host != ctx.Request().Host) {
		return fallback
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// formIDs parses the repeated id field of a form (eg. checked rows).
func formIDs(ctx echo.Context, field string) ([]int64, error) {
	form, err := ctx.FormParams()
	if err != nil {
		return nil, errors.Wrap(err, "parsing form")
	}
	ids := make([]int64, 0, len(form[field]))
	for _, raw := range form[field] {
		id, err := strconv.ParseInt(core.CleanString(raw), 10, 64)
		if err != nil {
			return nil, core.NewValidationError(errors.Errorf("invalid id %q", raw), core.FieldError{Field: field, Error: "invalid id"})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseRounds reads the interview rounds of the job form (eg. "codingRound.date").
func parseRounds(form url.Values) portal.InterviewRounds {
	round := func(prefix string) portal.Round {
		get := func(f string) string { return core.CleanString(form.Get(prefix + "." + f)) }
		return portal.Round{
			Enabled:      get("enabled") == "true",
			Date:         get("date"),
			Time:         get("time"),
			Venue:        get("venue"),
			Instructions: get("instructions"),
			Topics:       get("topics"),
			Questions:    get("questions"),
		}
	}
	return portal.InterviewRounds{
		CodingRound:        round("codingRound"),
		TechnicalInterview: round("technicalInterview"),
		HRRound:            round("hrRound"),
		ProjectTask: portal.ProjectTask{
			Enabled:      form.Get("projectTask.enabled") == "true",
			Description:  core.CleanString(form.Get("projectTask.description")),
			Deadline:     core.CleanString(form.Get("projectTask.deadline")),
			Requirements: core.CleanString(form.Get("projectTask.requirements")),
		},
	}
}

// isFormRequest reports whether the body is an HTML form (urlencoded or multipart).
func isFormRequest(ctx echo.Context) bool {
	ct := ctx.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}
