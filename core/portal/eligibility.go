package portal

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
)

// Eligibility holds the branches and semesters allowed to apply for a job.
// Semesters apply to every selected branch; they are not scoped per branch.
type Eligibility struct {
	Branches  []string
	Semesters []int
}

// BranchSemester is one eligible (branch, semester) pair.
type BranchSemester struct {
	Branch   string
	Semester int
}

func (e Eligibility) HasBranch(code string) bool {
	for _, b := range e.Branches {
		if b == code {
			return true
		}
	}
	return false
}

func (e Eligibility) HasSemester(sem int) bool {
	for _, s := range e.Semesters {
		if s == sem {
			return true
		}
	}
	return false
}

// MaxSemester is the highest semester offered by the checked branches.
func MaxSemester(depts []Department, checked []string) int {
	var max int
	for _, d := range depts {
		for _, code := range checked {
			if d.Code == code && d.MaxSemesters > max {
				max = d.MaxSemesters
			}
		}
	}
	return max
}

// SemesterOptions lists the semesters that can be ticked for the checked branches.
func SemesterOptions(depts []Department, checked []string) []int {
	max := MaxSemester(depts, checked)
	opts := make([]int, 0, max)
	for i := 1; i <= max; i++ {
		opts = append(opts, i)
	}
	return opts
}

// Pairs expands the eligibility into (branch, semester) pairs, clipping semesters to each branch's max.
func (e Eligibility) Pairs(depts []Department) []BranchSemester {
	maxes := make(map[string]int, len(depts))
	for _, d := range depts {
		maxes[d.Code] = d.MaxSemesters
	}
	var pairs []BranchSemester
	for _, b := range e.Branches {
		for _, s := range e.Semesters {
			if s <= maxes[b] {
				pairs = append(pairs, BranchSemester{Branch: b, Semester: s})
			}
		}
	}
	return pairs
}

// ParseEligibility reads the `eligibleBranches` and `eligibleSemesters` form values.
// Unknown branches and semesters beyond the checked branches' max are rejected.
func ParseEligibility(form url.Values, depts []Department) (Eligibility, error) {
	var e Eligibility
	var fldErrs []core.FieldError

	known := make(map[string]bool, len(depts))
	for _, d := range depts {
		known[d.Code] = true
	}
	seen := make(map[string]bool)
	for _, b := range form["eligibleBranches"] {
		b = core.CleanString(b)
		if b == "" || seen[b] {
			continue
		}
		if !known[b] {
			fldErrs = append(fldErrs, core.FieldError{Field: "eligibleBranches", Error: fmt.Sprintf("unknown branch %q", b)})
			continue
		}
		seen[b] = true
		e.Branches = append(e.Branches, b)
	}

	max := MaxSemester(depts, e.Branches)
	seenSem := make(map[int]bool)
	for _, raw := range form["eligibleSemesters"] {
		sem, err := strconv.Atoi(core.CleanString(raw))
		if err != nil || sem < 1 || sem > max {
			fldErrs = append(fldErrs, core.FieldError{Field: "eligibleSemesters", Error: fmt.Sprintf("invalid semester %q", raw)})
			continue
		}
		if !seenSem[sem] {
			seenSem[sem] = true
			e.Semesters = append(e.Semesters, sem)
		}
	}
	sort.Ints(e.Semesters)

	if len(fldErrs) > 0 {
		return e, core.NewValidationError(errors.New("invalid eligibility"), fldErrs...)
	}
	return e, nil
}
