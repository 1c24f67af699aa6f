package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterJobs(t *testing.T) {
	jobs := []Job{
		{ID: 1, Title: "Software Engineer", CompanyName: "Acme", Description: "Backend work", Salary: 900000, LastDate: "2025-07-01", CreatedAt: "2025-05-01T10:00:00Z", Location: "Indore"},
		{ID: 2, Title: "Finance Analyst", CompanyName: "Bank Co", Description: "Junior accountant role", Salary: 500000, LastDate: "2025-06-15", CreatedAt: "2025-05-03T10:00:00Z", Location: "Pune"},
		{ID: 3, Title: "Summer Intern", CompanyName: "Startup", Description: "Frontend developer internship", Salary: 20000, LastDate: "2025-06-01", CreatedAt: "2025-05-02T10:00:00Z"},
		{ID: 4, Title: "Civil Engineer", CompanyName: "BuildIt", Description: "Site supervision", Salary: 600000, LastDate: "2025-08-01"},
	}
	ids := func(js []Job) []int64 {
		res := make([]int64, 0, len(js))
		for _, j := range js {
			res = append(res, j.ID)
		}
		return res
	}

	tests := []struct {
		name   string
		filter JobFilter
		want   []int64
	}{
		{name: "newest by default", filter: JobFilter{}, want: []int64{4, 2, 3, 1}},
		{name: "search title", filter: JobFilter{Search: "ENGINEER"}, want: []int64{4, 1}},
		{name: "search company", filter: JobFilter{Search: "bank"}, want: []int64{2}},
		{name: "search description", filter: JobFilter{Search: "supervision"}, want: []int64{4}},
		{name: "category it", filter: JobFilter{Category: CategoryIT}, want: []int64{3, 1}},
		{name: "category engineering", filter: JobFilter{Category: CategoryEngineering}, want: []int64{4, 1}},
		{name: "category finance", filter: JobFilter{Category: CategoryFinance}, want: []int64{2}},
		{name: "category internship", filter: JobFilter{Category: CategoryInternship}, want: []int64{3}},
		{name: "category all", filter: JobFilter{Category: CategoryAll, Sort: "salary-high"}, want: []int64{1, 4, 2, 3}},
		{name: "salary low", filter: JobFilter{Sort: "salary-low"}, want: []int64{3, 2, 4, 1}},
		{name: "deadline", filter: JobFilter{Sort: "deadline"}, want: []int64{3, 2, 1, 4}},
		{name: "location skips jobs without location", filter: JobFilter{Location: "pune", Sort: "salary-low"}, want: []int64{3, 2, 4}},
		{name: "no match", filter: JobFilter{Search: "astronaut"}, want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterJobs(jobs, tt.filter)))
		})
	}
}
