package echoweb

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/csvexport"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/toast"
	"github.com/placementcell/portal/services/api"
	emailsvc "github.com/placementcell/portal/services/email"
)

// adminFlashDuration is how long the dashboard messages stay up.
const adminFlashDuration = 3 * time.Second

type (
	adminApi struct {
		logger     core.Logger
		client     *api.Client
		notifier   *emailsvc.ApplicationNotifier
		validate   *validator.Validate
		translator ut.Translator
		panels     map[string]panel
	}

	// panel serves one tab of the dashboard. Only load is required.
	panel struct {
		noun   string
		load   func(ctx echo.Context, client *api.Client) (interface{}, error)
		save   func(ctx echo.Context, client *api.Client, id int64) (interface{}, error)
		remove func(ctx echo.Context, client *api.Client, id int64) error
		status func(ctx echo.Context, client *api.Client, id int64, status string) error
		rows   func(ctx echo.Context, client *api.Client) ([]csvexport.Row, error)
	}

	adminPage struct {
		Tabs          []portal.Tab
		Active        portal.Tab
		Role          portal.Role
		Notifications bool
		Panel         interface{}
	}
)

func registerAdminRoutes(g *echo.Group, deps ServerDeps) *adminApi {
	h := &adminApi{
		logger:     deps.Logger,
		client:     deps.Client,
		notifier:   deps.Notifier,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
	h.panels = map[string]panel{
		portal.TabJobs:         h.jobsPanel(),
		portal.TabApplications: h.applicationsPanel(),
		portal.TabInterviews:   h.interviewsPanel(),
		portal.TabUsers:        h.usersPanel(),
		portal.TabDepartments:  h.departmentsPanel(),
		portal.TabGallery:      resourcePanel(h, "Gallery item", (*api.Client).Gallery, nil),
		portal.TabCompanies:    resourcePanel(h, "Company", (*api.Client).Companies, nil),
	}

	g.GET("", h.index)
	g.GET("/:tab", h.show)
	g.GET("/:tab/export.csv", h.export)
	g.POST("/:tab", h.create)
	g.POST("/:tab/:id", h.update)
	g.POST("/:tab/:id/delete", h.delete)
	g.POST("/:tab/:id/status", h.setStatus)
	return h
}

// index opens the first tab the role may see.
func (h *adminApi) index(ctx echo.Context) error {
	tabs := portal.VisibleTabs(getSession(ctx).Role())
	if len(tabs) == 0 {
		return errHttpForbidden
	}
	return ctx.Redirect(http.StatusFound, "/admin/"+tabs[0].ID)
}

// tabPanel resolves the tab of the request; the session role must be allowed to see it.
func (h *adminApi) tabPanel(ctx echo.Context) (portal.Tab, panel, error) {
	tab, err := contextTab(ctx, ctx.Param("tab"))
	if err != nil {
		return tab, panel{}, err
	}
	p, ok := h.panels[tab.ID]
	if !ok {
		return tab, p, errHttpNotFound
	}
	return tab, p, nil
}

func (h *adminApi) show(ctx echo.Context) error {
	tab, p, err := h.tabPanel(ctx)
	if err != nil {
		return err
	}
	return h.renderPanel(ctx, http.StatusOK, tab, p, nil, nil)
}

// renderPanel loads the data of the tab, and only that tab, then renders it.
func (h *adminApi) renderPanel(ctx echo.Context, code int, tab portal.Tab, p panel, form interface{}, errs map[string]string) error {
	data, err := p.load(ctx, contextClient(ctx, h.client))
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		h.logger.Warn(fmt.Sprintf("loading %s: %v", tab.ID, err), err, userOf(ctx))
		adminFlash(ctx, toast.Error, fmt.Sprintf("Failed to load %s.", tab.ID))
		code = http.StatusBadGateway
	}
	return h.renderPage(ctx, code, tab, data, form, errs)
}

func (h *adminApi) renderPage(ctx echo.Context, code int, tab portal.Tab, data, form interface{}, errs map[string]string) error {
	s := getSession(ctx)
	return render(ctx, code, "admin/"+tab.ID, view{
		Title:  "Admin: " + tab.Label,
		Form:   form,
		Errors: errs,
		Data: adminPage{
			Tabs:          portal.VisibleTabs(s.Role()),
			Active:        tab,
			Role:          s.Role(),
			Notifications: s.SendEmailNotifications,
			Panel:         data,
		},
	})
}

func (h *adminApi) create(ctx echo.Context) error {
	return h.save(ctx, 0)
}

func (h *adminApi) update(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	return h.save(ctx, id)
}

func (h *adminApi) save(ctx echo.Context, id int64) error {
	tab, p, err := h.tabPanel(ctx)
	if err != nil {
		return err
	}
	if p.save == nil {
		return echo.ErrMethodNotAllowed
	}

	form, err := p.save(ctx, contextClient(ctx, h.client), id)
	if err != nil {
		return h.failed(ctx, tab, p, form, err)
	}
	if id == 0 {
		return h.done(ctx, tab, p.noun+" created successfully!")
	}
	return h.done(ctx, tab, p.noun+" updated successfully!")
}

func (h *adminApi) delete(ctx echo.Context) error {
	tab, p, err := h.tabPanel(ctx)
	if err != nil {
		return err
	}
	if p.remove == nil {
		return echo.ErrMethodNotAllowed
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := p.remove(ctx, contextClient(ctx, h.client), id); err != nil {
		return h.failed(ctx, tab, p, nil, err)
	}
	return h.done(ctx, tab, p.noun+" deleted")
}

func (h *adminApi) setStatus(ctx echo.Context) error {
	tab, p, err := h.tabPanel(ctx)
	if err != nil {
		return err
	}
	if p.status == nil {
		return echo.ErrMethodNotAllowed
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data statusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to statusRequest")
	}
	data.Status = core.CleanString(data.Status)
	if err := h.validate.Struct(data); err != nil {
		return h.failed(ctx, tab, p, nil, err)
	}
	if err := p.status(ctx, contextClient(ctx, h.client), id, data.Status); err != nil {
		return h.failed(ctx, tab, p, nil, err)
	}
	return h.done(ctx, tab, "Status updated to "+data.Status)
}

// export streams the rows of the tab as a CSV attachment.
func (h *adminApi) export(ctx echo.Context) error {
	tab, p, err := h.tabPanel(ctx)
	if err != nil {
		return err
	}
	if p.rows == nil {
		return errHttpNotFound
	}
	rows, err := p.rows(ctx, contextClient(ctx, h.client))
	if err != nil {
		return errors.Wrapf(err, "exporting %s", tab.ID)
	}

	filename := fmt.Sprintf("%s_%s.csv", tab.ID, now(ctx).Format("2006-01-02"))
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return csvexport.Write(res, rows)
}

// done reports a successful mutation.
func (h *adminApi) done(ctx echo.Context, tab portal.Tab, msg string) error {
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"message": msg})
	}
	adminFlash(ctx, toast.Success, msg)
	return seeOther(ctx, "/admin/"+tab.ID)
}

// failed renders the panel again with the field errors of a rejected form.
// Backend failures are flashed; an expired token goes to the error handler.
func (h *adminApi) failed(ctx echo.Context, tab portal.Tab, p panel, form interface{}, err error) error {
	if wantsJSON(ctx) || errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	var vErrs validator.ValidationErrors
	var fErr *core.ValidationError
	var apiErr *api.Error
	switch {
	case errors.As(err, &vErrs):
		return h.renderPanel(ctx, http.StatusBadRequest, tab, p, form, core.TranslateErrors(vErrs, h.translator))
	case errors.As(err, &fErr):
		errs := fErr.FieldMap()
		if len(errs) == 0 {
			errs = formError(fErr.Error())
		}
		return h.renderPanel(ctx, http.StatusBadRequest, tab, p, form, errs)
	case errors.As(err, &apiErr):
		h.logger.Warn(fmt.Sprintf("admin %s: %v", tab.ID, err), err, userOf(ctx))
		adminFlash(ctx, toast.Error, apiErr.Message)
		return h.renderPanel(ctx, http.StatusBadGateway, tab, p, form, nil)
	}
	return err
}

// adminFlash shows a dashboard message for adminFlashDuration.
func adminFlash(ctx echo.Context, severity, msg string) {
	getSession(ctx).Toasts.Push(now(ctx), severity, msg, adminFlashDuration)
}

// resourcePanel is the panel of a plain CRUD resource.
// prepare completes the bound item with what the form binding cannot express.
func resourcePanel[T any](h *adminApi, noun string, res func(*api.Client) api.Resource[T], prepare func(echo.Context, *api.Client, *T) error) panel {
	return panel{
		noun: noun,
		load: func(ctx echo.Context, client *api.Client) (interface{}, error) {
			return res(client).List(ctx.Request().Context())
		},
		save: func(ctx echo.Context, client *api.Client, id int64) (interface{}, error) {
			var item T
			if err := ctx.Bind(&item); err != nil {
				return nil, errors.Wrapf(err, "binding to %T", item)
			}
			if prepare != nil {
				if err := prepare(ctx, client, &item); err != nil {
					return item, err
				}
			}
			if err := h.validate.Struct(item); err != nil {
				return item, err
			}

			var err error
			if id == 0 {
				_, err = res(client).Create(ctx.Request().Context(), item)
			} else {
				_, err = res(client).Update(ctx.Request().Context(), id, item)
			}
			return item, err
		},
		remove: func(ctx echo.Context, client *api.Client, id int64) error {
			return res(client).Delete(ctx.Request().Context(), id)
		},
	}
}

// exportRows lists the resource and converts it to CSV rows.
func exportRows[T any](res func(*api.Client) api.Resource[T]) func(echo.Context, *api.Client) ([]csvexport.Row, error) {
	return func(ctx echo.Context, client *api.Client) ([]csvexport.Row, error) {
		list, err := res(client).List(ctx.Request().Context())
		if err != nil {
			return nil, err
		}
		return csvexport.Rows(list)
	}
}

// Jobs

type jobsPanel struct {
	Jobs        []portal.Job
	Departments []portal.Department
	Semesters   []int
	CompanyName string     // fixed for company admins
	NewJob      portal.Job // defaults of the create form
}

func (h *adminApi) jobsPanel() panel {
	p := resourcePanel(h, "Job", (*api.Client).Jobs, h.prepareJob)
	p.load = func(ctx echo.Context, client *api.Client) (interface{}, error) {
		c := ctx.Request().Context()
		jobs, err := client.Jobs().List(c)
		if err != nil {
			return nil, err
		}
		depts, err := client.Departments().List(c)
		if err != nil {
			return nil, err
		}
		codes := make([]string, 0, len(depts))
		for _, d := range depts {
			codes = append(codes, d.Code)
		}
		return jobsPanel{
			Jobs:        jobs,
			Departments: depts,
			Semesters:   portal.SemesterOptions(depts, codes),
			CompanyName: companyOf(ctx),
			NewJob:      portal.Job{CompanyName: companyOf(ctx)},
		}, nil
	}
	p.rows = exportRows((*api.Client).Jobs)
	return p
}

// prepareJob checks the eligibility against the departments and serializes the interview rounds.
func (h *adminApi) prepareJob(ctx echo.Context, client *api.Client, job *portal.Job) error {
	if company := companyOf(ctx); company != "" {
		job.CompanyName = company
	}
	job.Title = core.CleanString(job.Title)
	job.CompanyName = core.CleanString(job.CompanyName)

	form := url.Values{}
	if isFormRequest(ctx) {
		params, err := ctx.FormParams()
		if err != nil {
			return errors.Wrap(err, "parsing job form")
		}
		form = params
		rounds, err := parseRounds(form).Encode()
		if err != nil {
			return err
		}
		job.InterviewRounds = rounds
	} else {
		form["eligibleBranches"] = job.EligibleBranches
		for _, sem := range job.EligibleSemesters {
			form.Add("eligibleSemesters", strconv.Itoa(sem))
		}
		if _, err := portal.DecodeInterviewRounds(job.InterviewRounds); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "interviewRounds", Error: "invalid interview rounds"})
		}
	}

	depts, err := client.Departments().List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	elig, err := portal.ParseEligibility(form, depts)
	if err != nil {
		return err
	}
	job.EligibleBranches, job.EligibleSemesters = elig.Branches, elig.Semesters
	return nil
}

// companyOf is the company a company admin posts for; empty for other roles.
func companyOf(ctx echo.Context) string {
	s := getSession(ctx)
	if s.Role() != portal.RoleCompanyAdmin {
		return ""
	}
	return s.CompanyName
}

// Applications

type applicationsPanel struct {
	Applications []portal.Application
	Jobs         []portal.Job
	JobID        int64
	Statuses     []portal.ApplicationStatus
}

func (h *adminApi) applicationsPanel() panel {
	return panel{
		load: func(ctx echo.Context, client *api.Client) (interface{}, error) {
			c := ctx.Request().Context()
			apps, err := client.Applications().List(c)
			if err != nil {
				return nil, err
			}
			jobs, err := client.Jobs().List(c)
			if err != nil {
				return nil, err
			}
			page := applicationsPanel{
				Applications: apps,
				Jobs:         jobs,
				Statuses:     []portal.ApplicationStatus{portal.StatusPending, portal.StatusShortlisted, portal.StatusRejected},
			}
			if jobID, err := strconv.ParseInt(ctx.QueryParam("job"), 10, 64); err == nil {
				page.JobID = jobID
				page.Applications = page.Applications[:0:0]
				for _, a := range apps {
					if a.JobID == jobID {
						page.Applications = append(page.Applications, a)
					}
				}
			}
			return page, nil
		},
		status: h.setApplicationStatus,
		rows:   exportRows((*api.Client).Applications),
	}
}

// setApplicationStatus moves the application, then emails the applicant when notifications are on.
func (h *adminApi) setApplicationStatus(ctx echo.Context, client *api.Client, id int64, raw string) error {
	status := portal.ApplicationStatus(raw)
	if !status.Valid() {
		return core.NewValidationError(errors.Errorf("invalid status %q", raw), core.FieldError{Field: "status", Error: "invalid status"})
	}
	c := ctx.Request().Context()
	if err := client.SetApplicationStatus(c, id, status); err != nil {
		return err
	}
	if !getSession(ctx).SendEmailNotifications {
		return nil
	}

	apps, err := client.Applications().List(c)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	for _, app := range apps {
		if app.ID != id {
			continue
		}
		var rounds portal.InterviewRounds
		if status == portal.StatusShortlisted {
			rounds = h.jobRounds(ctx, client, app.JobID)
		}
		if h.notifier.Notify(app, status, rounds) {
			adminFlash(ctx, toast.Info, "Notification email sent to "+app.ApplicantEmail)
		}
		break
	}
	return nil
}

// jobRounds returns the interview rounds of the job; failures only cost the email its schedule.
func (h *adminApi) jobRounds(ctx echo.Context, client *api.Client, jobID int64) portal.InterviewRounds {
	jobs, err := client.Jobs().List(ctx.Request().Context())
	if err != nil {
		h.logger.Warn(fmt.Sprintf("listing jobs: %v", err), err, userOf(ctx))
		return portal.InterviewRounds{}
	}
	for _, j := range jobs {
		if j.ID != jobID {
			continue
		}
		rounds, err := portal.DecodeInterviewRounds(j.InterviewRounds)
		if err != nil {
			h.logger.Warn(fmt.Sprintf("job %d: %v", jobID, err), err, userOf(ctx))
		}
		return rounds
	}
	return portal.InterviewRounds{}
}

// Interview drives

type interviewsPanel struct {
	Interviews  []portal.Interview
	Statuses    []portal.InterviewStatus
	CompanyName string
}

func (h *adminApi) interviewsPanel() panel {
	p := resourcePanel(h, "Interview drive", (*api.Client).Interviews, func(ctx echo.Context, _ *api.Client, iv *portal.Interview) error {
		if company := companyOf(ctx); company != "" {
			iv.CompanyName = company
		}
		if iv.Status == "" && ctx.Param("id") == "" {
			iv.Status = portal.InterviewScheduled
		}
		return nil
	})
	p.load = func(ctx echo.Context, client *api.Client) (interface{}, error) {
		list, err := client.Interviews().List(ctx.Request().Context())
		if err != nil {
			return nil, err
		}
		return interviewsPanel{
			Interviews:  list,
			Statuses:    []portal.InterviewStatus{portal.InterviewScheduled, portal.InterviewCompleted, portal.InterviewCancelled},
			CompanyName: companyOf(ctx),
		}, nil
	}
	p.status = func(ctx echo.Context, client *api.Client, id int64, raw string) error {
		status := portal.InterviewStatus(raw)
		if !status.Valid() {
			return core.NewValidationError(errors.Errorf("invalid status %q", raw), core.FieldError{Field: "status", Error: "invalid status"})
		}
		return client.SetInterviewStatus(ctx.Request().Context(), id, status)
	}
	return p
}

// Users

type usersPanel struct {
	Users       []portal.Account
	Departments []portal.Department
	Roles       []portal.Role
}

func (h *adminApi) usersPanel() panel {
	p := resourcePanel(h, "User", (*api.Client).Users, func(ctx echo.Context, _ *api.Client, acc *portal.Account) error {
		acc.Username = core.CleanString(acc.Username)
		acc.Email = core.CleanString(acc.Email, true)
		if isFormRequest(ctx) {
			params, err := ctx.FormParams()
			if err != nil {
				return errors.Wrap(err, "parsing user form")
			}
			acc.AllowedDepartments = params["allowedDepartments"]
		}
		// a department admin only manages the students of the own branch
		if s := getSession(ctx); s.Role() == portal.RoleDeptAdmin {
			if acc.Role != portal.RoleUser {
				return core.NewValidationError(errors.New("role not allowed"), core.FieldError{Field: "role", Error: "not allowed for this role"})
			}
			acc.Branch = s.AdminBranch
		}
		return nil
	})
	p.load = func(ctx echo.Context, client *api.Client) (interface{}, error) {
		c := ctx.Request().Context()
		users, err := client.Users().List(c)
		if err != nil {
			return nil, err
		}
		depts, err := client.Departments().List(c)
		if err != nil {
			return nil, err
		}
		roles := portal.AllRoles
		if getSession(ctx).Role() == portal.RoleDeptAdmin {
			roles = []portal.Role{portal.RoleUser}
		}
		return usersPanel{Users: users, Departments: depts, Roles: roles}, nil
	}
	p.rows = exportRows((*api.Client).Users)
	return p
}

// Departments

func (h *adminApi) departmentsPanel() panel {
	return resourcePanel(h, "Department", (*api.Client).Departments, h.prepareDepartment)
}

// prepareDepartment upper-cases the code and keeps it unique.
func (h *adminApi) prepareDepartment(ctx echo.Context, client *api.Client, d *portal.Department) error {
	d.Code = strings.ToUpper(core.CleanString(d.Code))
	d.Name = core.CleanString(d.Name)
	if d.MaxSemesters == 0 {
		d.MaxSemesters = 8
	}
	depts, err := client.Departments().List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	id, _ := strconv.ParseInt(ctx.Param("id"), 10, 64)
	for _, other := range depts {
		if other.Code == d.Code && other.ID != id {
			return core.NewValidationError(errors.Errorf("department %s exists", d.Code), core.FieldError{Field: "code", Error: "code already exists"})
		}
	}
	return nil
}
