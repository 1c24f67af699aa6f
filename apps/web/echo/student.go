package echoweb

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/services/api"
)

type studentApi struct {
	client *api.Client
}

func registerStudentRoutes(e *echo.Echo, deps ServerDeps) {
	h := studentApi{client: deps.Client}
	e.GET("/papers", h.papers, authMiddleware)
	e.GET("/dashboard", h.dashboard, authMiddleware)
}

type (
	papersPage struct {
		Papers    []portal.Paper
		Filter    paperFilter
		Branches  []string
		Semesters []int
	}

	dashboardPage struct {
		Applications []portal.Application
		Counts       map[string]int // by status
	}
)

// papers is the archive of previous year papers, filtered like the admin list.
func (h *studentApi) papers(ctx echo.Context) error {
	var filter paperFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to paperFilter")
	}
	papers, err := contextClient(ctx, h.client).ListPapers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing papers")
	}

	page := papersPage{Papers: filterPapers(papers, filter), Filter: filter}
	seenBranch, seenSem := make(map[string]bool), make(map[int]bool)
	for _, p := range papers {
		if p.Branch != "" && !seenBranch[p.Branch] {
			seenBranch[p.Branch] = true
			page.Branches = append(page.Branches, p.Branch)
		}
		if p.Semester > 0 && !seenSem[p.Semester] {
			seenSem[p.Semester] = true
			page.Semesters = append(page.Semesters, p.Semester)
		}
	}
	sort.Strings(page.Branches)
	sort.Ints(page.Semesters)

	return render(ctx, http.StatusOK, "papers", view{Title: "Exam Papers Archive", Data: page})
}

// dashboard lists the job applications of the student and where they stand.
func (h *studentApi) dashboard(ctx echo.Context) error {
	apps, err := contextClient(ctx, h.client).MyApplications(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	counts := make(map[string]int)
	for _, a := range apps {
		counts[string(a.Status)]++
	}
	return render(ctx, http.StatusOK, "dashboard", view{
		Title: "My Dashboard",
		Data:  dashboardPage{Applications: apps, Counts: counts},
	})
}
