package echoweb_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/portal/core/portal"
)

func Test_studentApi_papers(t *testing.T) {
	app := setup(t)
	app.backend.Papers = []portal.Paper{
		{ID: 1, Branch: "CSE", Semester: 3, Subject: "Data Structures", Year: 2023, Category: "End-Sem", FileURL: "https://files.example.com/ds.pdf"},
		{ID: 2, Branch: "CSE", Semester: 5, Subject: "Operating Systems", Category: "Mid-Sem"},
		{ID: 3, Branch: "ECE", Semester: 3, Subject: "Signals", Category: "End-Sem"},
	}

	runHTTPTests(t, app.browser(t), []httpTest{
		{name: "Anonymous", path: "/papers", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	})

	b := app.login(t, "0801CS201", false)
	tests := []struct {
		name    string
		query   string
		want    []string
		notWant []string
	}{
		{"all", "", []string{"Data Structures", "Operating Systems", "Signals", "https://files.example.com/ds.pdf"}, nil},
		{"branch", "?branch=ECE", []string{"Signals"}, []string{"Data Structures", "Operating Systems"}},
		{"semester", "?branch=CSE&semester=5", []string{"Operating Systems"}, []string{"Data Structures", "Signals"}},
		{"subject", "?subject=+data+", []string{"Data Structures"}, []string{"Operating Systems", "Signals"}},
		{"nothing", "?branch=ME", []string{"No papers found matching your filters."}, []string{"Signals"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.get("/papers" + tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			for _, want := range tt.want {
				assert.Contains(t, rec.Body.String(), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, rec.Body.String(), notWant)
			}
		})
	}

	rec := b.get("/papers")
	assert.Contains(t, rec.Body.String(), `<option value="ECE">ECE</option>`)
	assert.Contains(t, rec.Body.String(), `<option value="5">Sem 5</option>`)
}

func Test_studentApi_dashboard(t *testing.T) {
	app := setup(t)
	app.backend.Jobs = []portal.Job{
		{ID: 1, Title: "Software Engineer", CompanyName: "Acme"},
		{ID: 2, Title: "Finance Analyst", CompanyName: "Initech"},
	}
	b := app.login(t, "0801CS201", false)

	rec := b.get("/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have not applied to any job yet.")

	fields := map[string]string{
		"applicantName":   "Asha",
		"applicantEmail":  "asha@example.com",
		"applicantPhone":  "9999999999",
		"applicantRollNo": "0801CS201",
	}
	for _, path := range []string{"/jobs/1/apply", "/jobs/2/apply"} {
		rec = b.do(applyRequest(t, path, fields, "%PDF-cv"))
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	}
	require.Len(t, app.backend.Applications, 2)
	app.backend.Applications[0].Status = portal.StatusShortlisted

	rec = b.get("/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Software Engineer")
	assert.Contains(t, body, "Initech")
	assert.Contains(t, body, `<span class="badge status-SHORTLISTED">SHORTLISTED</span>`)
	assert.Contains(t, body, `<span class="badge status-PENDING">PENDING</span>`)
	assert.Contains(t, body, "Shortlisted: 1")

	// every user only sees their own applications
	other := app.login(t, "admin", true)
	rec = other.get("/dashboard")
	assert.Contains(t, rec.Body.String(), "You have not applied to any job yet.")

	app.backend.Down = true
	rec = b.get("/dashboard")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
