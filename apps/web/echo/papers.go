package echoweb

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
	"github.com/placementcell/portal/storage/staging"
)

const papersURL = "/admin/papers"

type papersApi struct {
	admin      *adminApi
	staging    *staging.Dir
	runner     upload.Runner
	category   string
	university string
}

func registerPaperRoutes(g *echo.Group, deps ServerDeps, admin *adminApi, runner upload.Runner) {
	h := papersApi{
		admin:      admin,
		staging:    deps.Staging,
		runner:     runner,
		category:   deps.Conf.Upload.Category,
		university: deps.Conf.Upload.University,
	}
	admin.panels[portal.TabPapers] = panel{noun: "Paper", load: h.load}

	pg := g.Group("/papers", tabMiddleware(portal.TabPapers))
	pg.GET("", h.show)
	pg.POST("/:id/delete", h.deletePaper)
	pg.POST("/delete", h.deletePapers)
	pg.POST("/departments", h.addDepartment)

	wz := pg.Group("/wizard")
	wz.POST("/mode", h.setMode)
	wz.POST("/branch", h.chooseBranch)
	wz.POST("/semester", h.chooseSemester)
	wz.POST("/back", h.back)
	wz.POST("/reset", h.reset)
	wz.POST("/subjects", h.addSubject)
	wz.POST("/subjects/:entry", h.updateSubject)
	wz.POST("/subjects/:entry/delete", h.removeSubject)
	wz.POST("/subjects/:entry/files", h.addFiles)
	wz.POST("/subjects/:entry/files/:file/delete", h.removeFile)
	wz.POST("/review", h.review)
	wz.POST("/zip", h.setZip)
	wz.POST("/upload", h.upload)
	wz.POST("/retry", h.retry)
}

type (
	paperFilter struct {
		Branch   string `query:"branch"`
		Semester int    `query:"semester"`
		Subject  string `query:"subject"`
	}

	papersPanel struct {
		Papers      []portal.Paper
		Filter      paperFilter
		Departments []portal.Department
		Wizard      upload.Wizard
		Branch      string // resolved wizard branch
		Semester    int    // resolved wizard semester
		Review      *upload.Review
		Uploads     *upload.Queue
		Semesters   []int
		Known       []string          // subjects already uploaded for the chosen branch and semester
		Hints       map[string]string // entry id -> existing subject its custom name resembles
		FixedBranch string            // department admins only manage their own branch
	}
)

func (h *papersApi) show(ctx echo.Context) error {
	tab, _ := portal.FindTab(portal.TabPapers)
	return h.admin.renderPanel(ctx, http.StatusOK, tab, h.admin.panels[portal.TabPapers], nil, nil)
}

func (h *papersApi) load(ctx echo.Context, client *api.Client) (interface{}, error) {
	var filter paperFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return nil, errors.Wrap(err, "binding to paperFilter")
	}
	fixed := branchOf(ctx)
	if fixed != "" {
		filter.Branch = fixed
	}

	c := ctx.Request().Context()
	papers, err := client.ListPapers(c)
	if err != nil {
		return nil, err
	}
	depts, err := client.Departments().List(c)
	if err != nil {
		return nil, err
	}

	w := h.wizard(ctx)
	page := papersPanel{
		Papers:      filterPapers(papers, filter),
		Filter:      filter,
		Departments: depts,
		Wizard:      *w,
		Branch:      w.ResolvedBranch(),
		Semester:    w.ResolvedSemester(),
		Uploads:     getSession(ctx).Uploads,
		Semesters:   upload.PresetSemesters,
		Hints:       map[string]string{},
		FixedBranch: fixed,
	}
	if w.Step == upload.StepSubjects {
		page.Known = knownSubjects(papers, page.Branch, page.Semester)
		for _, e := range w.Subjects.Entries {
			if match, ok := upload.SimilarSubject(e.CustomName, page.Known); ok {
				page.Hints[e.ID] = match
			}
		}
		if w.Subjects.Reviewing {
			if r, err := w.Subjects.Review(); err == nil {
				page.Review = &r
			}
		}
	}
	return page, nil
}

func filterPapers(papers []portal.Paper, f paperFilter) []portal.Paper {
	subject := core.CleanString(f.Subject, true)
	var out []portal.Paper
	for _, p := range papers {
		if f.Branch != "" && p.Branch != f.Branch {
			continue
		}
		if f.Semester > 0 && p.Semester != f.Semester {
			continue
		}
		if subject != "" && !strings.Contains(strings.ToLower(p.Subject), subject) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// knownSubjects lists the distinct subjects of a branch and semester, sorted.
func knownSubjects(papers []portal.Paper, branch string, semester int) []string {
	seen := make(map[string]bool)
	var subjects []string
	for _, p := range papers {
		if p.Branch != branch || p.Semester != semester || p.Subject == "" || seen[p.Subject] {
			continue
		}
		seen[p.Subject] = true
		subjects = append(subjects, p.Subject)
	}
	sort.Strings(subjects)
	return subjects
}

// branchOf is the branch a department admin is restricted to; empty for other roles.
func branchOf(ctx echo.Context) string {
	s := getSession(ctx)
	if s.Role() != portal.RoleDeptAdmin {
		return ""
	}
	return s.AdminBranch
}

// wizard returns the upload wizard of the session, creating it on first use.
func (h *papersApi) wizard(ctx echo.Context) *upload.Wizard {
	s := getSession(ctx)
	if s.Wizard == nil {
		w := upload.NewWizard(h.category, h.university)
		s.Wizard = &w
	}
	return s.Wizard
}

// Papers list

func (h *papersApi) deletePaper(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if err := contextClient(ctx, h.admin.client).DeletePaper(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, api.ErrUnauthorized) || wantsJSON(ctx) {
			return err
		}
		h.admin.logger.Warn(fmt.Sprintf("deleting paper %d: %v", id, err), err, userOf(ctx))
		toastError(ctx, "Delete failed")
		return seeOther(ctx, backURL(ctx, papersURL))
	}
	return h.done(ctx, "Paper deleted")
}

// deletePapers deletes the checked papers one by one; failures are skipped and not counted.
func (h *papersApi) deletePapers(ctx echo.Context) error {
	ids, err := formIDs(ctx, "id")
	if err != nil {
		return err
	}
	client := contextClient(ctx, h.admin.client)

	var deleted int
	for _, id := range ids {
		if err := client.DeletePaper(ctx.Request().Context(), id); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return err
			}
			h.admin.logger.Warn(fmt.Sprintf("deleting paper %d: %v", id, err), err, userOf(ctx))
			continue
		}
		deleted++
	}
	return h.done(ctx, fmt.Sprintf("Deleted %d papers.", deleted))
}

// addDepartment is the quick-add of a branch from the upload wizard.
func (h *papersApi) addDepartment(ctx echo.Context) error {
	var d portal.Department
	if err := ctx.Bind(&d); err != nil {
		return errors.Wrap(err, "binding to Department")
	}
	client := contextClient(ctx, h.admin.client)
	if err := h.admin.prepareDepartment(ctx, client, &d); err != nil {
		return h.failed(ctx, err)
	}
	if err := h.admin.validate.Struct(d); err != nil {
		return h.failed(ctx, err)
	}
	if _, err := client.Departments().Create(ctx.Request().Context(), d); err != nil {
		if errors.Is(err, api.ErrUnauthorized) || wantsJSON(ctx) {
			return err
		}
		toastError(ctx, "Failed to create branch: "+failureText(err))
		return seeOther(ctx, papersURL)
	}
	return h.done(ctx, "Branch created successfully!")
}

// Wizard

func (h *papersApi) setMode(ctx echo.Context) error {
	mode := upload.Mode(ctx.FormValue("mode"))
	if mode != upload.ModeManual && mode != upload.ModeBulk {
		return h.failed(ctx, core.NewValidationError(errors.Errorf("invalid mode %q", mode), core.FieldError{Field: "mode", Error: "invalid mode"}))
	}
	w := h.wizard(ctx)
	h.unstage(ctx, w)
	w.SetMode(mode)
	getSession(ctx).Uploads = nil
	return h.next(ctx)
}

func (h *papersApi) chooseBranch(ctx echo.Context) error {
	w := h.wizard(ctx)
	var err error
	if ctx.FormValue("new") == "true" {
		err = w.ChooseNewBranch(ctx.FormValue("newBranch"))
	} else {
		err = w.ChooseBranch(ctx.FormValue("branch"))
	}
	if err == nil {
		if fixed := branchOf(ctx); fixed != "" && w.ResolvedBranch() != fixed {
			w.Back()
			err = core.NewValidationError(errors.New("branch not allowed"), core.FieldError{Field: "branch", Error: "you can only upload papers of " + fixed})
		}
	}
	if err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

func (h *papersApi) chooseSemester(ctx echo.Context) error {
	w := h.wizard(ctx)
	var err error
	if raw := core.CleanString(ctx.FormValue("customSemester")); raw != "" {
		n, _ := strconv.Atoi(raw)
		err = w.ChooseCustomSemester(n)
	} else {
		n, _ := strconv.Atoi(core.CleanString(ctx.FormValue("semester")))
		err = w.ChooseSemester(n)
	}
	if err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

func (h *papersApi) back(ctx echo.Context) error {
	h.wizard(ctx).Back()
	return h.next(ctx)
}

func (h *papersApi) reset(ctx echo.Context) error {
	w := h.wizard(ctx)
	h.unstage(ctx, w)
	w.Reset()
	getSession(ctx).Uploads = nil
	return h.next(ctx)
}

func (h *papersApi) addSubject(ctx echo.Context) error {
	w := h.wizard(ctx)
	if w.Mode != upload.ModeManual || w.Step != upload.StepSubjects {
		return h.failed(ctx, upload.ErrWrongStep)
	}
	w.Subjects.Add()
	return h.next(ctx)
}

func (h *papersApi) updateSubject(ctx echo.Context) error {
	w := h.wizard(ctx)
	id := ctx.Param("entry")

	var err error
	if custom := core.CleanString(ctx.FormValue("customName")); custom != "" {
		err = w.Subjects.SetCustomName(id, custom)
		if err == nil {
			h.warnSimilar(ctx, w, custom)
		}
	} else {
		err = w.Subjects.SetName(id, core.CleanString(ctx.FormValue("name")))
	}
	if err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

// warnSimilar flags a custom subject name that likely misspells an uploaded one.
func (h *papersApi) warnSimilar(ctx echo.Context, w *upload.Wizard, custom string) {
	papers, err := contextClient(ctx, h.admin.client).ListPapers(ctx.Request().Context())
	if err != nil {
		h.admin.logger.Warn(fmt.Sprintf("listing papers: %v", err), err, userOf(ctx))
		return
	}
	known := knownSubjects(papers, w.ResolvedBranch(), w.ResolvedSemester())
	if match, ok := upload.SimilarSubject(custom, known); ok {
		toastWarning(ctx, fmt.Sprintf("%q looks like the existing subject %q.", custom, match))
	}
}

func (h *papersApi) removeSubject(ctx echo.Context) error {
	w := h.wizard(ctx)
	e, err := w.Subjects.Entry(ctx.Param("entry"))
	if err != nil {
		return h.failed(ctx, err)
	}
	if w.Subjects.Remove(e.ID) {
		for _, f := range e.Files {
			h.removeStaged(ctx, f)
		}
	}
	return h.next(ctx)
}

func (h *papersApi) addFiles(ctx echo.Context) error {
	w := h.wizard(ctx)
	id := ctx.Param("entry")
	if _, err := w.Subjects.Entry(id); err != nil {
		return h.failed(ctx, err)
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		return h.failed(ctx, core.NewValidationError(err, core.FieldError{Field: "files", Error: "please select at least one file"}))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return h.failed(ctx, core.NewValidationError(errors.New("no files"), core.FieldError{Field: "files", Error: "please select at least one file"}))
	}

	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			for _, f := range files {
				h.removeStaged(ctx, f)
			}
			return h.failed(ctx, core.NewValidationError(errors.Errorf("%s is not a PDF", fh.Filename), core.FieldError{Field: "files", Error: "only PDF files are allowed"}))
		}
		f, err := h.stage(ctx, fh)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if err := w.Subjects.AddFiles(id, files...); err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

func (h *papersApi) removeFile(ctx echo.Context) error {
	f, err := h.wizard(ctx).Subjects.RemoveFile(ctx.Param("entry"), ctx.Param("file"))
	if err != nil {
		return h.failed(ctx, err)
	}
	h.removeStaged(ctx, f)
	return h.next(ctx)
}

func (h *papersApi) review(ctx echo.Context) error {
	w := h.wizard(ctx)
	if w.Mode != upload.ModeManual || w.Step != upload.StepSubjects {
		return h.failed(ctx, upload.ErrWrongStep)
	}
	if _, err := w.Subjects.StartReview(); err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

func (h *papersApi) setZip(ctx echo.Context) error {
	w := h.wizard(ctx)
	if w.Mode != upload.ModeBulk {
		return h.failed(ctx, upload.ErrWrongMode)
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return h.failed(ctx, upload.ErrZipRequired)
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
		return h.failed(ctx, core.NewValidationError(errors.Errorf("%s is not a zip", fh.Filename), core.FieldError{Field: "file", Error: "only ZIP files are allowed"}))
	}
	f, err := h.stage(ctx, fh)
	if err != nil {
		return err
	}
	if w.Zip != nil {
		h.removeStaged(ctx, *w.Zip)
	}
	if err := w.SetZip(f); err != nil {
		return h.failed(ctx, err)
	}
	return h.next(ctx)
}

// upload submits the wizard: one request per subject in manual mode, the archive in bulk mode.
func (h *papersApi) upload(ctx echo.Context) error {
	w := h.wizard(ctx)
	if err := w.Ready(); err != nil {
		return h.failed(ctx, err)
	}
	if w.Mode == upload.ModeBulk {
		return h.uploadZip(ctx, w)
	}

	review, err := w.Subjects.Review()
	if err != nil {
		return h.failed(ctx, err)
	}
	q := upload.QueueFromReview(review)
	getSession(ctx).Uploads = &q
	return h.run(ctx, w)
}

// retry uploads the failed subjects of the last batch again.
func (h *papersApi) retry(ctx echo.Context) error {
	s := getSession(ctx)
	if s.Uploads == nil || s.Uploads.RetryFailed() == 0 {
		toastInfo(ctx, "Nothing to retry.")
		return h.next(ctx)
	}
	return h.run(ctx, h.wizard(ctx))
}

func (h *papersApi) run(ctx echo.Context, w *upload.Wizard) error {
	s := getSession(ctx)
	client := contextClient(ctx, h.admin.client)
	meta := w.Meta()

	runCtx, cancel := context.WithCancel(ctx.Request().Context())
	defer cancel()

	var authErr error
	progress := make([]taskProgress, 0, len(s.Uploads.Tasks))
	runner := h.runner
	runner.OnProgress = func(p upload.Progress) {
		progress = append(progress, taskProgress{Name: p.Task.Name, Status: p.Task.Status, Reason: p.Task.Reason, Percent: p.Percent()})
	}
	res, err := runner.Run(runCtx, s.Uploads, func(c context.Context, t upload.Task) error {
		err := h.uploadSubject(c, client, s.ID, w, meta, t)
		if errors.Is(err, api.ErrUnauthorized) {
			// the token is gone, every other request would fail the same way
			authErr = err
			cancel()
		}
		return err
	})
	if authErr != nil {
		return authErr
	}
	if err != nil {
		return errors.Wrap(err, "uploading papers")
	}

	if s.Uploads.Done() {
		h.unstage(ctx, w)
		w.Reset()
		s.Uploads = nil
		toastSuccess(ctx, "Papers uploaded successfully!")
	} else {
		reason := "interrupted"
		if len(res.Failed) > 0 {
			reason = res.Failed[0].Reason
		}
		toastError(ctx, "Upload failed: "+reason)
		toastWarning(ctx, res.Message())
	}

	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{
			"message":   res.Message(),
			"succeeded": res.Succeeded,
			"total":     res.Total,
			"failed":    res.FailedNames(),
			"progress":  progress,
		})
	}
	return seeOther(ctx, papersURL)
}

// taskProgress is reported for each finished task of an upload run.
type taskProgress struct {
	Name    string        `json:"name"`
	Status  upload.Status `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Percent int           `json:"percent"`
}

// uploadSubject sends the staged files of one subject entry.
func (h *papersApi) uploadSubject(ctx context.Context, client *api.Client, sessionID string, w *upload.Wizard, meta upload.Meta, t upload.Task) error {
	e, err := w.Subjects.Entry(t.ID)
	if err != nil {
		return err
	}
	files := make([]api.NamedReader, 0, len(e.Files))
	for _, f := range e.Files {
		rc, err := h.staging.Open(sessionID, f)
		if err != nil {
			return err
		}
		defer rc.Close()
		files = append(files, api.NamedReader{Name: f.Name, Reader: rc})
	}
	if err := client.UploadPapers(ctx, meta, t.Name, files); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		return errors.New(failureText(err))
	}
	return nil
}

func (h *papersApi) uploadZip(ctx echo.Context, w *upload.Wizard) error {
	s := getSession(ctx)
	rc, err := h.staging.Open(s.ID, *w.Zip)
	if err != nil {
		return err
	}
	defer rc.Close()

	err = contextClient(ctx, h.admin.client).UploadZip(ctx.Request().Context(), w.University, api.NamedReader{Name: w.Zip.Name, Reader: rc})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) || wantsJSON(ctx) {
			return err
		}
		h.admin.logger.Warn(fmt.Sprintf("uploading zip: %v", err), err, userOf(ctx))
		toastError(ctx, "Upload failed: "+failureText(err))
		return seeOther(ctx, papersURL)
	}

	h.unstage(ctx, w)
	w.Reset()
	return h.done(ctx, "ZIP upload processed successfully!")
}

// failureText is the message shown for a failed backend call.
func failureText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return errors.Cause(err).Error()
}

// Staging

func (h *papersApi) stage(ctx echo.Context, fh *multipart.FileHeader) (upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return upload.File{}, errors.Wrapf(err, "opening %s", fh.Filename)
	}
	defer src.Close()
	return h.staging.Save(getSession(ctx).ID, fh.Filename, src)
}

func (h *papersApi) removeStaged(ctx echo.Context, f upload.File) {
	if err := h.staging.Remove(getSession(ctx).ID, f.ID); err != nil {
		h.admin.logger.Warn(fmt.Sprintf("removing staged file %s: %v", f.Name, err), err, userOf(ctx))
	}
}

// unstage drops every file the wizard holds.
func (h *papersApi) unstage(ctx echo.Context, w *upload.Wizard) {
	for _, f := range w.Subjects.Files() {
		h.removeStaged(ctx, f)
	}
	if w.Zip != nil {
		h.removeStaged(ctx, *w.Zip)
	}
}

// Responses

// next shows the wizard after a successful step.
func (h *papersApi) next(ctx echo.Context) error {
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, h.wizard(ctx))
	}
	return seeOther(ctx, papersURL)
}

func (h *papersApi) done(ctx echo.Context, msg string) error {
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"message": msg})
	}
	toastSuccess(ctx, msg)
	return seeOther(ctx, backURL(ctx, papersURL))
}

// failed maps the wizard errors to responses: form errors render the panel again, misplaced steps are flashed.
func (h *papersApi) failed(ctx echo.Context, err error) error {
	switch errors.Cause(err) {
	case upload.ErrWrongStep, upload.ErrWrongMode:
		err = echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
	case upload.ErrEntryNotFound, upload.ErrFileNotFound:
		err = echo.NewHTTPError(http.StatusNotFound, errors.Cause(err).Error())
	}
	if wantsJSON(ctx) {
		return err
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		toastWarning(ctx, fmt.Sprint(httpErr.Message))
		return seeOther(ctx, papersURL)
	}
	tab, _ := portal.FindTab(portal.TabPapers)
	return h.admin.failed(ctx, tab, h.admin.panels[portal.TabPapers], nil, err)
}
