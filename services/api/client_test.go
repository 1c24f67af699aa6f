package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
	logsvc "github.com/placementcell/portal/services/logger"
	testutil "github.com/placementcell/portal/tests"
)

func newTestClient(t *testing.T) (*api.Client, *testutil.Backend) {
	b := testutil.NewBackend(t)
	return api.NewClient(b.Config()), b
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		student    bool
		identifier string
		password   string
		wantErr    bool
		wantErrStr string
		wantRole   portal.Role
	}{
		{"student", true, "0801CS201", testutil.Password, false, "", portal.RoleUser},
		{"company admin", false, "acme", testutil.Password, false, "", portal.RoleCompanyAdmin},
		{"super admin", false, "super", testutil.Password, false, "", portal.RoleSuperAdmin},
		{"wrong password", false, "admin", "nope", true, "Invalid credentials", ""},
		{"unknown user", true, "0000", testutil.Password, true, "Invalid credentials", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := client.Login(ctx, tt.student, tt.identifier, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				assert.True(t, errors.Is(err, api.ErrUnauthorized))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, tt.wantRole, portal.RoleFromClaims(res.Roles))
		})
	}
}

func TestClient_Unauthorized(t *testing.T) {
	client, b := newTestClient(t)
	ctx := context.Background()

	// no token
	_, err := client.ListJobs(ctx)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))

	// valid token
	authed := client.WithToken(b.Token(t, "admin", time.Hour))
	_, err = authed.ListJobs(ctx)
	require.NoError(t, err)

	// revoked on the backend
	b.Revoke()
	_, err = authed.ListJobs(ctx)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))

	// expired: caught before the round trip
	hits := b.Hits("GET /api/admin/users")
	expired := client.WithToken(b.Token(t, "admin", -time.Minute))
	_, err = expired.Users().List(ctx)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Equal(t, hits, b.Hits("GET /api/admin/users"))
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message", http.StatusBadRequest, `{"message":"Code already exists"}`, "Code already exists"},
		{"error", http.StatusConflict, `{"error":"duplicate"}`, "duplicate"},
		{"text", http.StatusInternalServerError, "disk full", "disk full"},
		{"html", http.StatusBadGateway, "<html>bad gateway</html>", "Bad Gateway"},
		{"empty", http.StatusNotFound, "", "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conf := core.NewTestConfig()
			conf.API.BaseURL = srv.URL + "/api"
			err := api.NewClient(conf).Delete(context.Background(), "/papers/1")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.status, api.StatusOf(err))
			assert.False(t, errors.Is(err, api.ErrUnauthorized))
		})
	}

	conf := core.NewTestConfig()
	conf.API.BaseURL = "http://127.0.0.1:1/api"
	err := api.NewClient(conf).Health(context.Background())
	require.Error(t, err)
	assert.Zero(t, api.StatusOf(err))
}

func TestResources(t *testing.T) {
	client, b := newTestClient(t)
	ctx := context.Background()
	client = client.WithToken(b.Token(t, "super", time.Hour))

	dept, err := client.Departments().Create(ctx, portal.Department{Code: "CSE", Name: "Computer Science", MaxSemesters: 8})
	require.NoError(t, err)
	assert.NotZero(t, dept.ID)

	dept.MaxSemesters = 10
	_, err = client.Departments().Update(ctx, dept.ID, dept)
	require.NoError(t, err)

	depts, err := client.Departments().List(ctx)
	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.Equal(t, 10, depts[0].MaxSemesters)

	require.NoError(t, client.Departments().Delete(ctx, dept.ID))
	err = client.Departments().Delete(ctx, dept.ID)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))

	iv, err := client.Interviews().Create(ctx, portal.Interview{CompanyName: "Acme", Date: "2024-05-01"})
	require.NoError(t, err)
	require.NoError(t, client.SetInterviewStatus(ctx, iv.ID, portal.InterviewCompleted))
	assert.Equal(t, portal.InterviewCompleted, b.Interviews[0].Status)
	err = client.SetInterviewStatus(ctx, iv.ID, "DONE")
	assert.Equal(t, http.StatusBadRequest, api.StatusOf(err))
}

func TestApply(t *testing.T) {
	client, b := newTestClient(t)
	ctx := context.Background()
	b.Jobs = []portal.Job{{ID: 7, Title: "SDE", CompanyName: "Acme"}}
	client = client.WithToken(b.Token(t, "0801CS201", time.Hour))

	ids, err := client.AppliedJobIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	app := portal.JobApplication{
		JobID:           7,
		ApplicantName:   "Asha",
		ApplicantEmail:  "asha@example.com",
		ApplicantPhone:  "9999999999",
		ApplicantRollNo: "0801CS201",
		JobTitle:        "SDE",
		CompanyName:     "Acme",
	}
	require.NoError(t, client.Apply(ctx, app, "resume.pdf", strings.NewReader("%PDF")))

	ids, err = client.AppliedJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{7: true}, ids)
	require.Len(t, b.Applications, 1)
	assert.Equal(t, "asha@example.com", b.Applications[0].ApplicantEmail)
	assert.Equal(t, portal.StatusPending, b.Applications[0].Status)

	b.Applications[0].Status = portal.StatusShortlisted
	apps, err := client.MyApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "SDE", apps[0].JobTitle)
	assert.Equal(t, portal.StatusShortlisted, apps[0].Status)
}

func TestUploadPapers(t *testing.T) {
	client, b := newTestClient(t)
	ctx := context.Background()
	client = client.WithToken(b.Token(t, "hod", time.Hour))

	meta := upload.Meta{Branch: "CSE", Semester: 5, Category: "End-Sem", University: "DAVV"}
	files := []api.NamedReader{
		{Name: "2023.pdf", Reader: strings.NewReader("a")},
		{Name: "2022.pdf", Reader: strings.NewReader("b")},
	}
	require.NoError(t, client.UploadPapers(ctx, meta, "Compiler Design", files))

	require.Len(t, b.Uploads, 1)
	up := b.Uploads[0]
	assert.Equal(t, "/api/papers/upload-multiple", up.Path)
	assert.Equal(t, map[string]string{
		"branch":     "CSE",
		"semester":   "5",
		"subject":    "Compiler Design",
		"year":       "0",
		"category":   "End-Sem",
		"university": "DAVV",
		"title":      "Compiler Design",
	}, up.Fields)
	assert.Equal(t, []string{"2022.pdf", "2023.pdf"}, up.Files["files"])
	assert.Equal(t, "b", up.Data["2022.pdf"])

	papers, err := client.ListPapers(ctx)
	require.NoError(t, err)
	assert.Len(t, papers, 2)

	require.NoError(t, client.UploadZip(ctx, "DAVV", api.NamedReader{Name: "papers.zip", Reader: strings.NewReader("PK")}))
	zip := b.Uploads[1]
	assert.Equal(t, []string{"papers.zip"}, zip.Files["file"])
	assert.Equal(t, "0", zip.Fields["year"])
	assert.Equal(t, "DAVV", zip.Fields["university"])
}

func TestKeepAlive(t *testing.T) {
	b := testutil.NewBackend(t)
	conf := b.Config()
	conf.API.KeepAliveSpec = "@every 1h"
	k := api.NewKeepAlive(api.NewClient(conf), conf, logsvc.NewDiscardLogger())

	require.NoError(t, k.Start())
	require.NoError(t, k.Start())
	k.Stop()
	// one immediate ping, even when started twice
	assert.Equal(t, 1, b.Hits("GET /api/health"))

	conf.API.KeepAliveSpec = "not a spec"
	k = api.NewKeepAlive(api.NewClient(conf), conf, logsvc.NewDiscardLogger())
	assert.Error(t, k.Start())
}
