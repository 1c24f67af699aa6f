package echoweb

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/services/api"
)

const qrSize = 256

var (
	jobCategories = []string{portal.CategoryAll, portal.CategoryIT, portal.CategoryEngineering, portal.CategoryFinance, portal.CategoryInternship}
	jobSorts      = []string{"newest", "salary-high", "salary-low", "deadline"}
)

type jobsApi struct {
	conf       *core.Config
	logger     core.Logger
	client     *api.Client
	validate   *validator.Validate
	translator ut.Translator
}

func registerJobRoutes(e *echo.Echo, deps ServerDeps) {
	h := jobsApi{
		conf:       deps.Conf,
		logger:     deps.Logger,
		client:     deps.Client,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	g := e.Group("/jobs", authMiddleware)
	g.GET("", h.list)
	g.GET("/:id/apply", h.applyForm)
	g.POST("/:id/apply", h.apply)
	g.GET("/:id/qr.png", h.qrCode)
}

type jobsPage struct {
	Jobs       []portal.Job
	Applied    map[int64]bool
	Filter     portal.JobFilter
	Categories []string
	Sorts      []string
}

func (h *jobsApi) list(ctx echo.Context) error {
	var filter portal.JobFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to JobFilter")
	}
	if filter.Category == "" {
		filter.Category = portal.CategoryAll
	}
	if filter.Sort == "" {
		filter.Sort = jobSorts[0]
	}

	client := contextClient(ctx, h.client)
	jobs, err := client.ListJobs(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing jobs")
	}
	applied, err := h.appliedJobIDs(ctx, client)
	if err != nil {
		return err
	}

	return render(ctx, http.StatusOK, "jobs", view{
		Title: "Job Opportunities",
		Data: jobsPage{
			Jobs:       portal.FilterJobs(jobs, filter),
			Applied:    applied,
			Filter:     filter,
			Categories: jobCategories,
			Sorts:      jobSorts,
		},
	})
}

// appliedJobIDs tolerates backend failures: the list just shows no applied jobs.
func (h *jobsApi) appliedJobIDs(ctx echo.Context, client *api.Client) (map[int64]bool, error) {
	applied, err := client.AppliedJobIDs(ctx.Request().Context())
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return nil, err
		}
		h.logger.Warn(fmt.Sprintf("listing applied jobs: %v", err), err, userOf(ctx))
		return map[int64]bool{}, nil
	}
	return applied, nil
}

func (h *jobsApi) findJob(ctx echo.Context, client *api.Client) (portal.Job, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return portal.Job{}, err
	}
	jobs, err := client.ListJobs(ctx.Request().Context())
	if err != nil {
		return portal.Job{}, errors.Wrap(err, "listing jobs")
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return portal.Job{}, errHttpNotFound
}

type applyPage struct {
	Job portal.Job
}

func (h *jobsApi) applyForm(ctx echo.Context) error {
	client := contextClient(ctx, h.client)
	job, err := h.findJob(ctx, client)
	if err != nil {
		return err
	}
	applied, err := h.appliedJobIDs(ctx, client)
	if err != nil {
		return err
	}
	if applied[job.ID] {
		toastInfo(ctx, "You have already applied for this job.")
		return seeOther(ctx, "/jobs")
	}

	form := portal.JobApplication{JobID: job.ID, ApplicantName: getSession(ctx).Username}
	return h.renderApply(ctx, http.StatusOK, job, form, nil)
}

func (h *jobsApi) renderApply(ctx echo.Context, code int, job portal.Job, form portal.JobApplication, errs map[string]string) error {
	return render(ctx, code, "apply", view{
		Title:  "Apply: " + job.Title,
		Form:   form,
		Errors: errs,
		Data:   applyPage{Job: job},
	})
}

func (h *jobsApi) apply(ctx echo.Context) error {
	client := contextClient(ctx, h.client)
	job, err := h.findJob(ctx, client)
	if err != nil {
		return err
	}

	var data portal.JobApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JobApplication")
	}
	data.JobID, data.JobTitle, data.CompanyName = job.ID, job.Title, job.CompanyName

	errs := make(map[string]string)
	if err := h.validate.Struct(data); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return errors.Wrap(err, "validating JobApplication")
		}
		errs = core.TranslateErrors(vErrs, h.translator)
	}
	fh, err := ctx.FormFile("resume")
	if err != nil {
		errs["resume"] = "this field is required"
	}
	if len(errs) > 0 {
		return h.renderApply(ctx, http.StatusBadRequest, job, data, errs)
	}

	resume, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening resume")
	}
	defer resume.Close()

	if err := client.Apply(ctx.Request().Context(), data, fh.Filename, resume); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		h.logger.Warn(fmt.Sprintf("applying to job %d: %v", job.ID, err), err, userOf(ctx))
		toastError(ctx, "Failed to submit application. Please try again later.")
		return h.renderApply(ctx, http.StatusBadGateway, job, data, nil)
	}

	toastSuccess(ctx, fmt.Sprintf(
		"Application for %q submitted successfully! You will receive a confirmation email shortly.", job.Title,
	))
	return seeOther(ctx, "/jobs")
}

// qrCode renders the apply link of the job as a PNG QR code.
func (h *jobsApi) qrCode(ctx echo.Context) error {
	job, err := h.findJob(ctx, contextClient(ctx, h.client))
	if err != nil {
		return err
	}
	link := job.ApplyLink
	if link == "" {
		link = fmt.Sprintf("%s/jobs/%d/apply", h.conf.FrontendBaseURL, job.ID)
	}
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		return errors.Wrap(err, "encoding QR code")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}
