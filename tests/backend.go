package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
)

// Password logs every fake account in.
const Password = "secret"

var signingKey = []byte("test-signing-key")

type (
	// Upload is a multipart request received by the backend.
	Upload struct {
		Path   string
		Fields map[string]string
		Files  map[string][]string // field: file names
		Data   map[string]string   // file name: content
	}

	// Backend is an in-memory placement backend served over HTTP.
	Backend struct {
		*httptest.Server

		mu       sync.Mutex
		nextID   int64
		accounts map[string]portal.LoginResult // computer code or username: login
		tokens   map[string]string             // token: username
		applied  map[string][]int64            // username: application ids

		Jobs         []portal.Job
		Users        []portal.Account
		Departments  []portal.Department
		Interviews   []portal.Interview
		Gallery      []portal.GalleryItem
		Companies    []portal.Company
		Applications []portal.Application
		Papers       []portal.Paper
		Uploads      []Upload
		Requests     []string // "METHOD /path"

		// FailSubjects makes /papers/upload-multiple fail for these subjects with the message.
		FailSubjects map[string]string
		// Down makes every endpoint answer 503.
		Down bool
	}
)

// NewBackend starts a fake backend with a few accounts; it is closed at the end of the test.
func NewBackend(t *testing.T) *Backend {
	b := &Backend{
		nextID:       100,
		accounts:     make(map[string]portal.LoginResult),
		tokens:       make(map[string]string),
		applied:      make(map[string][]int64),
		FailSubjects: make(map[string]string),
	}
	b.AddAccount("admin", portal.LoginResult{Username: "admin", Roles: []string{"ROLE_ADMIN"}})
	b.AddAccount("super", portal.LoginResult{Username: "super", Roles: []string{"ROLE_ADMIN", "ROLE_SUPER_ADMIN"}})
	b.AddAccount("acme", portal.LoginResult{Username: "acme", Roles: []string{"ROLE_COMPANY_ADMIN"}, CompanyName: "Acme"})
	b.AddAccount("hod", portal.LoginResult{Username: "hod", Roles: []string{"ROLE_DEPT_ADMIN"}, Branch: "CSE"})
	b.AddAccount("0801CS201", portal.LoginResult{Username: "student", Roles: []string{"ROLE_USER"}, Branch: "CSE"})

	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Close)
	return b
}

// Config returns a test config pointing at the backend.
func (b *Backend) Config() *core.Config {
	conf := core.NewTestConfig()
	conf.API.BaseURL = b.URL + "/api"
	return conf
}

func (b *Backend) AddAccount(identifier string, login portal.LoginResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[identifier] = login
}

// Token issues a token for the account, valid for ttl (expired when negative).
func (b *Backend) Token(t *testing.T, identifier string, ttl time.Duration) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	login, ok := b.accounts[identifier]
	if !ok {
		t.Fatalf("Token(): unknown account %s", identifier)
	}
	return b.issue(login.Username, ttl)
}

// Revoke makes the backend reject every issued token.
func (b *Backend) Revoke() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

func (b *Backend) NextID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

// Hits counts the received requests matching "METHOD /path".
func (b *Backend) Hits(req string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for _, r := range b.Requests {
		if r == req {
			n++
		}
	}
	return n
}

func (b *Backend) issue(username string, ttl time.Duration) string {
	claims := jwt.StandardClaims{Subject: username, ExpiresAt: time.Now().Add(ttl).Unix(), Id: strconv.FormatInt(b.nextID, 10)}
	b.nextID++
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	b.tokens[token] = username
	return token
}

func (b *Backend) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(b.record)

	e.GET("/api/health", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"status": "UP"}) })
	e.GET("/jobs", func(c echo.Context) error { return b.locked(c, func() interface{} { return b.Jobs }) }, b.auth)

	api := e.Group("/api")
	api.POST("/auth/login", b.login)
	api.GET("/gallery", func(c echo.Context) error { return b.locked(c, func() interface{} { return b.Gallery }) })

	protected := api.Group("", b.auth)
	protected.POST("/apply-job", b.apply)
	protected.GET("/job-applications/my", b.myApplications)
	protected.GET("/papers", func(c echo.Context) error { return b.locked(c, func() interface{} { return b.Papers }) })
	protected.DELETE("/papers/:id", b.deletePaper)
	protected.POST("/papers/upload-multiple", b.uploadPapers)
	protected.POST("/papers/bulk-upload-zip", b.uploadZip)

	admin := protected.Group("/admin")
	crud(b, admin.Group("/jobs"), &b.Jobs, func(j *portal.Job) *int64 { return &j.ID })
	crud(b, admin.Group("/users"), &b.Users, func(u *portal.Account) *int64 { return &u.ID })
	crud(b, admin.Group("/departments"), &b.Departments, func(d *portal.Department) *int64 { return &d.ID })
	crud(b, admin.Group("/interviews"), &b.Interviews, func(i *portal.Interview) *int64 { return &i.ID })
	crud(b, admin.Group("/gallery"), &b.Gallery, func(g *portal.GalleryItem) *int64 { return &g.ID })
	crud(b, admin.Group("/companies"), &b.Companies, func(c *portal.Company) *int64 { return &c.ID })
	crud(b, admin.Group("/applications"), &b.Applications, func(a *portal.Application) *int64 { return &a.ID })
	admin.PUT("/interviews/:id/status", b.setInterviewStatus)
	admin.PUT("/applications/:id/status", b.setApplicationStatus)

	return e
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		b.Requests = append(b.Requests, c.Request().Method+" "+c.Request().URL.Path)
		down := b.Down
		b.mu.Unlock()
		if down {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "backend is down"})
		}
		return next(c)
	}
}

func (b *Backend) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		username, ok := b.tokens[token]
		b.mu.Unlock()
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unauthorized"})
		}
		c.Set("username", username)
		return next(c)
	}
}

func (b *Backend) login(c echo.Context) error {
	var creds struct {
		Username     string `json:"username"`
		ComputerCode string `json:"computerCode"`
		Password     string `json:"password"`
	}
	if err := c.Bind(&creds); err != nil {
		return err
	}
	id := creds.Username
	if id == "" {
		id = creds.ComputerCode
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	login, ok := b.accounts[id]
	if !ok || creds.Password != Password {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid credentials"})
	}
	login.Token = b.issue(login.Username, time.Hour)
	return c.JSON(http.StatusOK, login)
}

// locked encodes the value returned by get while holding the backend lock.
func (b *Backend) locked(c echo.Context, get func() interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, get())
}

func (b *Backend) apply(c echo.Context) error {
	up, err := b.readUpload(c)
	if err != nil {
		return err
	}
	jobID, err := strconv.ParseInt(up.Fields["jobId"], 10, 64)
	if err != nil || len(up.Files["resume"]) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "jobId and resume are required"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	username := c.Get("username").(string)
	b.nextID++
	b.applied[username] = append(b.applied[username], b.nextID)
	b.Applications = append(b.Applications, portal.Application{
		ID:              b.nextID,
		JobID:           jobID,
		JobTitle:        up.Fields["jobTitle"],
		CompanyName:     up.Fields["companyName"],
		ApplicantName:   up.Fields["applicantName"],
		ApplicantEmail:  up.Fields["applicantEmail"],
		ApplicantPhone:  up.Fields["applicantPhone"],
		ApplicantRollNo: up.Fields["applicantRollNo"],
		Status:          portal.StatusPending,
	})
	return c.JSON(http.StatusCreated, echo.Map{"message": "Application submitted"})
}

func (b *Backend) myApplications(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	mine := make(map[int64]bool)
	for _, id := range b.applied[c.Get("username").(string)] {
		mine[id] = true
	}
	apps := make([]portal.Application, 0)
	for _, a := range b.Applications {
		if mine[a.ID] {
			apps = append(apps, a)
		}
	}
	return c.JSON(http.StatusOK, apps)
}

func (b *Backend) deletePaper(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.Papers {
		if p.ID == id {
			b.Papers = append(b.Papers[:i], b.Papers[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return c.JSON(http.StatusNotFound, echo.Map{"message": "Paper not found"})
}

func (b *Backend) uploadPapers(c echo.Context) error {
	up, err := b.readUpload(c)
	if err != nil {
		return err
	}
	subject := up.Fields["subject"]

	b.mu.Lock()
	defer b.mu.Unlock()
	b.Uploads = append(b.Uploads, up)
	if msg, ok := b.FailSubjects[subject]; ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": msg})
	}
	semester, _ := strconv.Atoi(up.Fields["semester"])
	for range up.Files["files"] {
		b.nextID++
		b.Papers = append(b.Papers, portal.Paper{
			ID:         b.nextID,
			Title:      up.Fields["title"],
			Branch:     up.Fields["branch"],
			Semester:   semester,
			Subject:    subject,
			Category:   up.Fields["category"],
			University: up.Fields["university"],
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Uploaded"})
}

func (b *Backend) uploadZip(c echo.Context) error {
	up, err := b.readUpload(c)
	if err != nil {
		return err
	}
	if len(up.Files["file"]) != 1 {
		return c.String(http.StatusBadRequest, "a zip file is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Uploads = append(b.Uploads, up)
	return c.JSON(http.StatusOK, echo.Map{"message": "Processed"})
}

func (b *Backend) readUpload(c echo.Context) (Upload, error) {
	up := Upload{Path: c.Request().URL.Path, Fields: make(map[string]string), Files: make(map[string][]string), Data: make(map[string]string)}
	form, err := c.MultipartForm()
	if err != nil {
		return up, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for k, vs := range form.Value {
		up.Fields[k] = vs[0]
	}
	for field, fhs := range form.File {
		for _, fh := range fhs {
			up.Files[field] = append(up.Files[field], fh.Filename)
			f, err := fh.Open()
			if err != nil {
				return up, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return up, err
			}
			up.Data[fh.Filename] = string(data)
		}
		sort.Strings(up.Files[field])
	}
	return up, nil
}

func (b *Backend) setInterviewStatus(c echo.Context) error {
	var body struct {
		Status portal.InterviewStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil || !body.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid status"})
	}
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Interviews {
		if b.Interviews[i].ID == id {
			b.Interviews[i].Status = body.Status
			return c.JSON(http.StatusOK, b.Interviews[i])
		}
	}
	return c.JSON(http.StatusNotFound, echo.Map{"message": "Interview not found"})
}

func (b *Backend) setApplicationStatus(c echo.Context) error {
	var body struct {
		Status portal.ApplicationStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil || !body.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Invalid status"})
	}
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Applications {
		if b.Applications[i].ID == id {
			b.Applications[i].Status = body.Status
			return c.JSON(http.StatusOK, b.Applications[i])
		}
	}
	return c.JSON(http.StatusNotFound, echo.Map{"message": "Application not found"})
}

// crud serves a collection: GET / and POST / on the root, PUT and DELETE on /:id.
func crud[T any](b *Backend, g *echo.Group, items *[]T, id func(*T) *int64) {
	find := func(c echo.Context) int {
		want, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		for i := range *items {
			if *id(&(*items)[i]) == want {
				return i
			}
		}
		return -1
	}

	g.GET("", func(c echo.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := make([]T, len(*items))
		copy(list, *items)
		return c.JSON(http.StatusOK, list)
	})
	g.POST("", func(c echo.Context) error {
		var item T
		if err := c.Bind(&item); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.nextID++
		*id(&item) = b.nextID
		*items = append(*items, item)
		return c.JSON(http.StatusCreated, item)
	})
	g.PUT("/:id", func(c echo.Context) error {
		var item T
		if err := c.Bind(&item); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		i := find(c)
		if i < 0 {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		*id(&item) = *id(&(*items)[i])
		(*items)[i] = item
		return c.JSON(http.StatusOK, item)
	})
	g.DELETE("/:id", func(c echo.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		i := find(c)
		if i < 0 {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		*items = append((*items)[:i], (*items)[i+1:]...)
		return c.NoContent(http.StatusNoContent)
	})
}
