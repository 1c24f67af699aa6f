package portal

import (
	"sort"
	"strings"
	"time"

	"github.com/placementcell/portal/core"
)

// Job categories
const (
	CategoryAll         = "all"
	CategoryIT          = "it"
	CategoryEngineering = "engineering"
	CategoryFinance     = "finance"
	CategoryInternship  = "internship"
)

// JobSorts maps the public sort options to orderings.
var JobSorts = map[string]string{
	"newest":      "-created_at",
	"salary-high": "-salary",
	"salary-low":  "salary",
	"deadline":    "last_date",
}

type JobFilter struct {
	Search   string `query:"search" form:"search"`
	Location string `query:"location" form:"location"`
	Category string `query:"category" form:"category"`
	Sort     string `query:"sort" form:"sort"`
}

// Ordering returns the orderings of the filter's sort option (newest by default).
func (f JobFilter) Ordering() []core.Ordering {
	spec, ok := JobSorts[f.Sort]
	if !ok {
		spec = JobSorts["newest"]
	}
	return core.ParseOrdering(spec)
}

func (f JobFilter) Match(j Job) bool {
	title := strings.ToLower(j.Title)
	desc := strings.ToLower(j.Description)

	if s := core.CleanString(f.Search, true); s != "" {
		if !(strings.Contains(title, s) ||
			strings.Contains(strings.ToLower(j.CompanyName), s) ||
			strings.Contains(desc, s)) {
			return false
		}
	}
	if l := core.CleanString(f.Location, true); l != "" && j.Location != "" {
		if !strings.Contains(strings.ToLower(j.Location), l) {
			return false
		}
	}

	switch f.Category {
	case CategoryIT:
		return strings.Contains(title, "software") || strings.Contains(desc, "developer")
	case CategoryEngineering:
		return strings.Contains(title, "engineer")
	case CategoryFinance:
		return strings.Contains(title, "finance") || strings.Contains(desc, "accountant")
	case CategoryInternship:
		return strings.Contains(title, "intern") || strings.Contains(desc, "internship")
	}
	return true
}

// FilterJobs returns the matching jobs sorted by the filter's sort option.
func FilterJobs(jobs []Job, f JobFilter) []Job {
	res := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if f.Match(j) {
			res = append(res, j)
		}
	}
	SortJobs(res, f.Ordering())
	return res
}

// SortJobs sorts jobs in place; supported fields: title, company_name, salary, last_date, created_at.
func SortJobs(jobs []Job, ords []core.Ordering) {
	sort.SliceStable(jobs, func(i, k int) bool {
		for _, ord := range ords {
			c := compareJobs(jobs[i], jobs[k], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareJobs(a, b Job, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "company_name":
		return strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName))
	case "salary":
		return a.Salary - b.Salary
	case "last_date":
		return compareTimes(parseDate(a.LastDate), parseDate(b.LastDate))
	case "created_at":
		ca, cb := a.CreatedAt, b.CreatedAt
		if ca == "" {
			ca = a.LastDate
		}
		if cb == "" {
			cb = b.LastDate
		}
		return compareTimes(parseDate(ca), parseDate(cb))
	}
	return 0
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate returns the zero time for unparsable dates.
func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
