package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
	testutil "github.com/placementcell/portal/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Backend, *bytes.Buffer) {
	backend := testutil.NewBackend(t)
	conf := backend.Config()
	out := new(bytes.Buffer)

	// start CLI
	cli := &commandLine{
		conf:   conf,
		client: api.NewClient(conf),
		runner: upload.Runner{Sleep: func(context.Context, time.Duration) error { return nil }},
		out:    out,
	}
	return cli, backend, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

type extra struct {
	pwd string
}

func mockPassword(tt cliTest) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(extra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

// writeFiles creates the files under dir; names are slash separated paths.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "uploadpapers: no args", args: []string{"uploadpapers"}, wantErr: errHelp},
		{name: "uploadpapers: no semester", args: []string{"uploadpapers", "-username", "admin", "-dir", ".", "-branch", "CSE"}, wantErr: errHelp},
		{name: "uploadzip: no file", args: []string{"uploadzip", "-username", "admin"}, wantErr: errHelp},
		{name: "export: no resource", args: []string{"export", "-username", "admin", "-out", "x.csv"}, wantErr: errHelp},
		{name: "export: unknown resource", args: []string{"export", "-username", "admin", "-resource", "papers", "-out", "x.csv"}, wantErrStr: `unknown resource "papers"`},
	})
	assert.Contains(t, out.String(), "uploadpapers -username USERNAME")
}

func Test_commandLine_login(t *testing.T) {
	cli, backend, _ := setup(t)
	dir := t.TempDir()

	runCLITests(t, cli, []cliTest{
		{name: "no password", args: []string{"export", "-username", "admin", "-resource", "jobs", "-out", filepath.Join(dir, "a.csv")}, wantErr: errHelp},
		{
			name: "wrong password", args: []string{"export", "-username", "admin", "-resource", "jobs", "-out", filepath.Join(dir, "a.csv")},
			extra: extra{pwd: "nope"}, wantErrStr: "login failed: Invalid credentials",
		},
		{
			name: "student", args: []string{"export", "-username", "0801CS201", "-resource", "jobs", "-out", filepath.Join(dir, "a.csv")},
			extra: extra{pwd: testutil.Password}, wantErrStr: "access denied: this command is for administrators only",
		},
	})
	assert.Zero(t, backend.Hits("GET /api/admin/jobs"))
}

func Test_commandLine_ping(t *testing.T) {
	cli, backend, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "ping"}))
	assert.Contains(t, out.String(), "backend is up")
	assert.Equal(t, 1, backend.Hits("GET /api/health"))

	backend.Down = true
	err := cli.run([]string{"admin", "ping"})
	require.Error(t, err)
	assert.Equal(t, "backend is unreachable: backend is down", err.Error())
}

func Test_commandLine_uploadPapers(t *testing.T) {
	cli, backend, out := setup(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Operating Systems/2022.pdf":  "%PDF-os-22",
		"Operating Systems/2023.PDF":  "%PDF-os-23",
		"Operating Systems/notes.txt": "skipped",
		"Compilers/2023.pdf":          "%PDF-cd-23",
		"Empty/readme.md":             "no papers",
		"loose.pdf":                   "%PDF-loose",
	})
	backend.FailSubjects["Operating Systems"] = "Disk full"

	args := []string{"uploadpapers", "-username", "admin", "-dir", dir, "-branch", " cse ", "-semester", "5"}
	runCLITests(t, cli, []cliTest{
		{name: "partial failure", args: args, extra: extra{pwd: testutil.Password}, wantErrStr: "failed subjects: Operating Systems"},
	})

	assert.Contains(t, out.String(), "Uploading 2 subjects for CSE semester 5 (End-Sem, DAVV)")
	assert.Contains(t, out.String(), "[ 50%] Compilers: succeeded")
	assert.Contains(t, out.String(), "[100%] Operating Systems: failed (Disk full)")
	assert.Contains(t, out.String(), "1/2 uploaded")

	require.Len(t, backend.Uploads, 2)
	up := backend.Uploads[0]
	assert.Equal(t, "Compilers", up.Fields["subject"])
	assert.Equal(t, "CSE", up.Fields["branch"])
	assert.Equal(t, "5", up.Fields["semester"])
	assert.Equal(t, "End-Sem", up.Fields["category"])
	assert.Equal(t, "DAVV", up.Fields["university"])
	assert.Equal(t, []string{"2023.pdf"}, up.Files["files"])
	assert.Equal(t, "%PDF-cd-23", up.Data["2023.pdf"])
	assert.Equal(t, []string{"2022.pdf", "2023.PDF"}, backend.Uploads[1].Files["files"])

	delete(backend.FailSubjects, "Operating Systems")
	out.Reset()
	mockPassword(cliTest{extra: extra{pwd: testutil.Password}})
	require.NoError(t, cli.run(append([]string{"admin"}, append(args, "-category", "Mid-Sem")...)))
	assert.Contains(t, out.String(), "2/2 uploaded")
	assert.Equal(t, "Mid-Sem", backend.Uploads[len(backend.Uploads)-1].Fields["category"])
}

func Test_commandLine_uploadPapers_errors(t *testing.T) {
	cli, backend, _ := setup(t)
	empty := t.TempDir()
	writeFiles(t, empty, map[string]string{"Compilers/notes.txt": "no papers"})

	runCLITests(t, cli, []cliTest{
		{
			name: "no papers", args: []string{"uploadpapers", "-username", "admin", "-dir", empty, "-branch", "CSE", "-semester", "5"},
			extra: extra{pwd: testutil.Password}, wantErrStr: "no PDF files found under " + empty,
		},
	})

	err := cli.run([]string{"admin", "uploadpapers", "-username", "admin", "-dir", filepath.Join(empty, "nope"), "-branch", "CSE", "-semester", "5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading papers dir")
	assert.Empty(t, backend.Uploads)
}

func Test_commandLine_uploadZip(t *testing.T) {
	cli, backend, out := setup(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"papers.zip": "PK-archive", "papers.tar": "tar"})

	runCLITests(t, cli, []cliTest{
		{
			name: "not a zip", args: []string{"uploadzip", "-username", "admin", "-file", filepath.Join(dir, "papers.tar")},
			extra: extra{pwd: testutil.Password}, wantErrStr: filepath.Join(dir, "papers.tar") + " is not a zip archive",
		},
		{
			name: "upload", args: []string{"uploadzip", "-username", "admin", "-file", filepath.Join(dir, "papers.zip"), "-university", "RGPV"},
			extra: extra{pwd: testutil.Password},
		},
	})

	require.Len(t, backend.Uploads, 1)
	up := backend.Uploads[0]
	assert.Equal(t, "/api/papers/bulk-upload-zip", up.Path)
	assert.Equal(t, "RGPV", up.Fields["university"])
	assert.Equal(t, "PK-archive", up.Data["papers.zip"])
	assert.Contains(t, out.String(), "papers.zip uploaded")
}

func Test_commandLine_export(t *testing.T) {
	cli, backend, out := setup(t)
	backend.Jobs = []portal.Job{
		{ID: 1, Title: "Software Engineer", CompanyName: "Acme", LastDate: "2024-06-30", Salary: 50000},
		{ID: 2, Title: "Finance Analyst", CompanyName: "Initech", LastDate: "2024-07-15", Salary: 40000},
	}
	dir := t.TempDir()
	jobsCSV := filepath.Join(dir, "jobs.csv")

	runCLITests(t, cli, []cliTest{
		{name: "jobs", args: []string{"export", "-username", "super", "-resource", "jobs", "-out", jobsCSV}, extra: extra{pwd: testutil.Password}},
		{name: "no users", args: []string{"export", "-username", "super", "-resource", "users", "-out", filepath.Join(dir, "users.csv")}, extra: extra{pwd: testutil.Password}},
	})

	data, err := os.ReadFile(jobsCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title"`)
	assert.Contains(t, string(data), `"Software Engineer"`)
	assert.Contains(t, string(data), `"Initech"`)
	assert.Contains(t, out.String(), "exported 2 jobs to "+jobsCSV)
	assert.Contains(t, out.String(), "no users to export")
	assert.NoFileExists(t, filepath.Join(dir, "users.csv"))
}
