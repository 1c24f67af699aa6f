package echoweb_test

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
)

const wizardURL = "/admin/papers/wizard"

func wizardOf(t *testing.T, b *browser, path string, form url.Values) upload.Wizard {
	t.Helper()
	rec := b.postAJAX(wizardURL+path, form)
	require.Equal(t, http.StatusOK, rec.Code, "%s: %s", path, rec.Body.String())
	var w upload.Wizard
	decodeJSON(t, rec, &w)
	return w
}

func pdfName(subject string) string {
	return strings.ToLower(strings.ReplaceAll(subject, " ", "-")) + ".pdf"
}

// fillWizard walks the manual wizard to the subjects step, with one entry and one file per subject.
func fillWizard(t *testing.T, b *browser, branch string, semester int, subjects ...string) upload.Wizard {
	t.Helper()
	wizardOf(t, b, "/branch", url.Values{"branch": {branch}})
	w := wizardOf(t, b, "/semester", url.Values{"semester": {strconv.Itoa(semester)}})
	for i, subject := range subjects {
		if i > 0 {
			w = wizardOf(t, b, "/subjects", url.Values{})
		}
		id := w.Subjects.Entries[i].ID
		wizardOf(t, b, "/subjects/"+id, url.Values{"name": {subject}})
		rec := b.postFiles(wizardURL+"/subjects/"+id+"/files", nil, "files", map[string]string{pdfName(subject): "%PDF-" + subject}, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decodeJSON(t, rec, &w)
	}
	return w
}

func Test_papersApi_manualUpload(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)

	w := wizardOf(t, b, "/branch", url.Values{"branch": {"CSE"}})
	assert.Equal(t, upload.StepSemester, w.Step)
	assert.Equal(t, "CSE", w.Branch)

	w = wizardOf(t, b, "/semester", url.Values{"customSemester": {"10"}})
	assert.Equal(t, upload.StepSubjects, w.Step)
	assert.Equal(t, 10, w.ResolvedSemester())
	require.Len(t, w.Subjects.Entries, 1)
	first := w.Subjects.Entries[0].ID

	wizardOf(t, b, "/subjects/"+first, url.Values{"name": {"Compiler Design"}})
	rec := b.postFiles(wizardURL+"/subjects/"+first+"/files", nil, "files", map[string]string{
		"cd-2022.pdf": "%PDF-2022",
		"cd-2023.PDF": "%PDF-2023",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = wizardOf(t, b, "/subjects", url.Values{})
	require.Len(t, w.Subjects.Entries, 2)
	second := w.Subjects.Entries[1].ID
	wizardOf(t, b, "/subjects/"+second, url.Values{"customName": {"  Machine Learning "}})
	rec = b.postFiles(wizardURL+"/subjects/"+second+"/files", nil, "files", map[string]string{"ml.pdf": "%PDF-ml"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = wizardOf(t, b, "/review", url.Values{})
	assert.True(t, w.Subjects.Reviewing)

	rec = b.get("/admin/papers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 subjects, 3 files for CSE semester 10 (End-Sem, DAVV)")

	rec = b.postAJAX(wizardURL+"/upload", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"2/2 uploaded","succeeded":2,"total":2,"failed":[],"progress":[
		{"name":"Compiler Design","status":"succeeded","percent":50},
		{"name":"Machine Learning","status":"succeeded","percent":100}
	]}`, rec.Body.String())

	require.Len(t, app.backend.Uploads, 2)
	cd, ml := app.backend.Uploads[0], app.backend.Uploads[1]
	assert.Equal(t, "/api/papers/upload-multiple", cd.Path)
	assert.Equal(t, map[string]string{
		"branch": "CSE", "semester": "10", "subject": "Compiler Design", "title": "Compiler Design",
		"year": "0", "category": "End-Sem", "university": "DAVV",
	}, cd.Fields)
	assert.Equal(t, []string{"cd-2022.pdf", "cd-2023.PDF"}, cd.Files["files"])
	assert.Equal(t, "%PDF-2023", cd.Data["cd-2023.PDF"])
	assert.Equal(t, "Machine Learning", ml.Fields["subject"])
	assert.Equal(t, []string{"ml.pdf"}, ml.Files["files"])
	assert.Len(t, app.backend.Papers, 3)

	// the wizard starts over
	s := b.session()
	require.NotNil(t, s.Wizard)
	assert.Equal(t, upload.StepBranch, s.Wizard.Step)
	assert.Equal(t, upload.ModeManual, s.Wizard.Mode)
	assert.Nil(t, s.Uploads)
	assert.Equal(t, "Papers uploaded successfully!", s.Toasts.Items[len(s.Toasts.Items)-1].Message)
}

func Test_papersApi_retry(t *testing.T) {
	app := setup(t)
	app.backend.FailSubjects["Operating Systems"] = "Disk full"
	b := app.login(t, "admin", true)

	fillWizard(t, b, "CSE", 5, "Algorithms", "Operating Systems", "Networks")
	rec := b.postAJAX(wizardURL+"/upload", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"2/3 uploaded","succeeded":2,"total":3,"failed":["Operating Systems"],"progress":[
		{"name":"Algorithms","status":"succeeded","percent":33},
		{"name":"Operating Systems","status":"failed","reason":"Disk full","percent":67},
		{"name":"Networks","status":"succeeded","percent":100}
	]}`, rec.Body.String())

	s := b.session()
	require.NotNil(t, s.Uploads)
	failed := s.Uploads.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "Disk full", failed[0].Reason)
	assert.Equal(t, upload.StepSubjects, s.Wizard.Step, "the batch is kept for a retry")

	var msgs []string
	for _, tt := range s.Toasts.Items {
		msgs = append(msgs, tt.Message)
	}
	assert.Contains(t, msgs, "Upload failed: Disk full")
	assert.Contains(t, msgs, "2/3 uploaded")

	delete(app.backend.FailSubjects, "Operating Systems")
	rec = b.postAJAX(wizardURL+"/retry", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"1/1 uploaded","succeeded":1,"total":1,"failed":[],
		"progress":[{"name":"Operating Systems","status":"succeeded","percent":100}]}`, rec.Body.String())
	assert.Equal(t, 4, app.backend.Hits("POST /api/papers/upload-multiple"))
	last := app.backend.Uploads[len(app.backend.Uploads)-1]
	assert.Equal(t, "Operating Systems", last.Fields["subject"])
	assert.Equal(t, []string{"operating-systems.pdf"}, last.Files["files"])
	assert.Nil(t, b.session().Uploads)

	// nothing left
	rec = b.post(wizardURL+"/retry", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 4, app.backend.Hits("POST /api/papers/upload-multiple"))
}

func Test_papersApi_wizardErrors(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)

	rec := b.postAJAX(wizardURL+"/review", url.Values{})
	assert.Equal(t, http.StatusConflict, rec.Code, "review at the branch step")

	rec = b.post(wizardURL+"/semester", url.Values{"semester": {"3"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code, "pages are sent back to the wizard")
	assert.Equal(t, "/admin/papers", rec.Header().Get("Location"))

	rec = b.postAJAX(wizardURL+"/branch", url.Values{"branch": {" "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"branch":"this field is required"}`, rec.Body.String())

	wizardOf(t, b, "/branch", url.Values{"new": {"true"}, "newBranch": {"AIML"}})
	rec = b.postAJAX(wizardURL+"/semester", url.Values{"semester": {"9"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"semester":"semester must be a positive number"}`, rec.Body.String())

	w := wizardOf(t, b, "/semester", url.Values{"semester": {"2"}})
	assert.Equal(t, "AIML", w.ResolvedBranch())
	id := w.Subjects.Entries[0].ID

	tests := []struct {
		name     string
		files    map[string]string
		wantCode int
		wantBody string
	}{
		{name: "not a PDF", files: map[string]string{"a.pdf": "%PDF", "notes.docx": "doc"}, wantCode: http.StatusBadRequest, wantBody: `{"files":"only PDF files are allowed"}`},
		{name: "no file", wantCode: http.StatusBadRequest, wantBody: `{"files":"please select at least one file"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.postFiles(wizardURL+"/subjects/"+id+"/files", map[string]string{"x": "y"}, "files", tt.files, true)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}

	rec = b.postAJAX(wizardURL+"/upload", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the entry has no name nor file")

	rec = b.postAJAX(wizardURL+"/subjects/nope", url.Values{"name": {"Maths"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.postFiles(wizardURL+"/zip", nil, "file", map[string]string{"papers.zip": "PK"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code, "no zip in manual mode")

	// the only entry cannot be removed
	w = wizardOf(t, b, "/subjects/"+id+"/delete", url.Values{})
	assert.Len(t, w.Subjects.Entries, 1)

	w = wizardOf(t, b, "/back", url.Values{})
	assert.Equal(t, upload.StepSemester, w.Step)
	w = wizardOf(t, b, "/reset", url.Values{})
	assert.Equal(t, upload.StepBranch, w.Step)
	assert.Empty(t, w.ResolvedBranch())
	assert.Empty(t, app.backend.Uploads)
}

func Test_papersApi_files(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)

	w := fillWizard(t, b, "CSE", 3, "Maths")
	entry := w.Subjects.Entries[0]
	require.Len(t, entry.Files, 1)
	assert.Equal(t, "maths.pdf", entry.Files[0].Name)

	w = wizardOf(t, b, "/subjects/"+entry.ID+"/files/"+entry.Files[0].ID+"/delete", url.Values{})
	assert.Empty(t, w.Subjects.Entries[0].Files)
	assert.False(t, w.Subjects.Valid())

	rec := b.postAJAX(wizardURL+"/subjects/"+entry.ID+"/files/"+entry.Files[0].ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.postAJAX(wizardURL+"/review", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_papersApi_similarSubject(t *testing.T) {
	app := setup(t)
	app.backend.Papers = []portal.Paper{
		{ID: 1, Branch: "CSE", Semester: 5, Subject: "Operating Systems"},
		{ID: 2, Branch: "ECE", Semester: 5, Subject: "Digital Electronics"},
	}
	b := app.login(t, "admin", true)

	w := fillWizard(t, b, "CSE", 5)
	wizardOf(t, b, "/subjects/"+w.Subjects.Entries[0].ID, url.Values{"customName": {"Operating System"}})

	toasts := b.session().Toasts.Items
	require.NotEmpty(t, toasts)
	assert.Equal(t, `"Operating System" looks like the existing subject "Operating Systems".`, toasts[len(toasts)-1].Message)

	rec := b.get("/admin/papers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="Operating Systems">`)
	assert.NotContains(t, rec.Body.String(), `<option value="Digital Electronics">`)
}

func Test_papersApi_bulkUpload(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)

	w := wizardOf(t, b, "/mode", url.Values{"mode": {"bulk"}})
	assert.Equal(t, upload.ModeBulk, w.Mode)

	rec := b.postAJAX(wizardURL+"/mode", url.Values{"mode": {"batch"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.postAJAX(wizardURL+"/upload", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"file":"this field is required"}`, rec.Body.String())

	rec = b.postFiles(wizardURL+"/zip", nil, "file", map[string]string{"papers.tar": "tar"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"file":"only ZIP files are allowed"}`, rec.Body.String())

	rec = b.postAJAX(wizardURL+"/branch", url.Values{"branch": {"CSE"}})
	assert.Equal(t, http.StatusConflict, rec.Code, "no steps in bulk mode")

	rec = b.postFiles(wizardURL+"/zip", nil, "file", map[string]string{"old.zip": "PK-old"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = b.postFiles(wizardURL+"/zip", nil, "file", map[string]string{"papers.zip": "PK-new"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeJSON(t, rec, &w)
	require.NotNil(t, w.Zip)
	assert.Equal(t, "papers.zip", w.Zip.Name)

	rec = b.postAJAX(wizardURL+"/upload", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"ZIP upload processed successfully!"}`, rec.Body.String())

	require.Len(t, app.backend.Uploads, 1)
	up := app.backend.Uploads[0]
	assert.Equal(t, "/api/papers/bulk-upload-zip", up.Path)
	assert.Equal(t, "DAVV", up.Fields["university"])
	assert.Equal(t, []string{"papers.zip"}, up.Files["file"])
	assert.Equal(t, "PK-new", up.Data["papers.zip"])

	s := b.session()
	assert.Equal(t, upload.ModeBulk, s.Wizard.Mode, "the mode survives the reset")
	assert.Nil(t, s.Wizard.Zip)
}

func Test_papersApi_deptAdmin(t *testing.T) {
	app := setup(t)
	app.backend.Papers = []portal.Paper{
		{ID: 1, Title: "Compiler Design 2023", Branch: "CSE", Semester: 6, Subject: "Compiler Design"},
		{ID: 2, Title: "Signals 2023", Branch: "ECE", Semester: 4, Subject: "Signals and Systems"},
	}
	b := app.login(t, "hod", true)

	rec := b.get("/admin/papers?branch=ECE")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Compiler Design 2023")
	assert.NotContains(t, rec.Body.String(), "Signals 2023")

	rec = b.postAJAX(wizardURL+"/branch", url.Values{"branch": {"ECE"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"branch":"you can only upload papers of CSE"}`, rec.Body.String())
	assert.Equal(t, upload.StepBranch, b.session().Wizard.Step)

	w := wizardOf(t, b, "/branch", url.Values{"branch": {"CSE"}})
	assert.Equal(t, upload.StepSemester, w.Step)
}

func Test_papersApi_delete(t *testing.T) {
	app := setup(t)
	app.backend.Papers = []portal.Paper{
		{ID: 1, Title: "A", Branch: "CSE", Semester: 1, Subject: "Maths"},
		{ID: 2, Title: "B", Branch: "CSE", Semester: 1, Subject: "Physics"},
		{ID: 3, Title: "C", Branch: "CSE", Semester: 2, Subject: "Chemistry"},
	}
	b := app.login(t, "admin", true)

	toastOf := func() string {
		items := b.session().Toasts.Items
		require.NotEmpty(t, items)
		return items[len(items)-1].Message
	}

	rec := b.post("/admin/papers/delete", url.Values{"id": {"1", "2", "99"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/papers", rec.Header().Get("Location"))
	assert.Equal(t, "Deleted 2 papers.", toastOf())
	require.Len(t, app.backend.Papers, 1)

	rec = b.post("/admin/papers/delete", url.Values{"id": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.post("/admin/papers/99/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Delete failed", toastOf())

	rec = b.postAJAX("/admin/papers/3/delete", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Paper deleted"}`, rec.Body.String())
	assert.Empty(t, app.backend.Papers)
}

func Test_papersApi_addDepartment(t *testing.T) {
	app := setup(t)
	app.backend.Departments = []portal.Department{{ID: 1, Code: "CSE", Name: "Computer Science", MaxSemesters: 8}}
	b := app.login(t, "admin", true)

	rec := b.post("/admin/papers/departments", url.Values{"code": {"me"}, "name": {"Mechanical"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Len(t, app.backend.Departments, 2)
	assert.Equal(t, "ME", app.backend.Departments[1].Code)

	rec = b.postAJAX("/admin/papers/departments", url.Values{"code": {"CSE"}, "name": {"Again"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":"code already exists"}`, rec.Body.String())
}

func Test_papersApi_logoutDropsStagedFiles(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)
	fillWizard(t, b, "CSE", 3, "Compilers", "Networks")

	dir := filepath.Join(app.stagingDir, b.cookies["session_id"].Value)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	rec := b.post("/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, b.session().Wizard)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func Test_papersApi_uploadStopsOnExpiredToken(t *testing.T) {
	app := setup(t)
	b := app.login(t, "admin", true)
	fillWizard(t, b, "CSE", 5, "Algorithms", "Operating Systems", "Networks")
	app.backend.Revoke()

	rec := b.postAJAX(wizardURL+"/upload", url.Values{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, app.backend.Hits("POST /api/papers/upload-multiple"))
	assert.Empty(t, app.backend.Uploads)
}
