package echoweb_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoweb "github.com/placementcell/portal/apps/web/echo"
	"github.com/placementcell/portal/assets"
	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/content"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/services/api"
	emailsvc "github.com/placementcell/portal/services/email"
	logsvc "github.com/placementcell/portal/services/logger"
	inmemstore "github.com/placementcell/portal/storage/sessions/inmem"
	"github.com/placementcell/portal/storage/staging"
	testutil "github.com/placementcell/portal/tests"
)

type testApp struct {
	*echoweb.Server
	backend    *testutil.Backend
	mail       *emailsvc.ConsoleServiceMock
	sessions   *session.Manager
	stagingDir string
}

func setup(t *testing.T) *testApp {
	backend := testutil.NewBackend(t)
	conf := backend.Config()
	conf.Upload.StagingDir = t.TempDir()
	logger := logsvc.NewDiscardLogger()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	portal.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	sessions := session.NewManager(inmemstore.NewStore(), conf, logger)
	dir, err := staging.NewDir(conf, logger)
	require.NoError(t, err)
	t.Cleanup(dir.Subscribe(sessions))

	library, err := content.LoadLibrary(assets.FS)
	require.NoError(t, err)

	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	server := echoweb.NewServer(echoweb.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Sessions:   sessions,
		Staging:    dir,
		Client:     api.NewClient(conf),
		Notifier:   emailsvc.NewApplicationNotifier(mail),
		Library:    library,
		Validate:   validate,
		Translator: translator,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
	return &testApp{Server: server, backend: backend, mail: mail, sessions: sessions, stagingDir: conf.Upload.StagingDir}
}

// browser replays the cookies the app sets, like a browser would.
type browser struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
}

func (app *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

// login opens a session for the account; admins log in through the admin form.
func (app *testApp) login(t *testing.T, identifier string, admin bool) *browser {
	b := app.browser(t)
	mode := "student"
	if admin {
		mode = "admin"
	}
	rec := b.post("/login", url.Values{"mode": {mode}, "identifier": {identifier}, "password": {testutil.Password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, "login(%s): %s", identifier, rec.Body.String())
	return b
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	req, _ := newRequest(http.MethodGet, path, nil)
	return b.do(req)
}

func (b *browser) getJSON(path string) *httptest.ResponseRecorder {
	req, _ := newRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req, _ := newRequest(http.MethodPost, path, form)
	return b.do(req)
}

// postAJAX sends a form and asks for a JSON answer.
func (b *browser) postAJAX(path string, form url.Values) *httptest.ResponseRecorder {
	req, _ := newRequest(http.MethodPost, path, form)
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

func (b *browser) postJSON(path string, data interface{}) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(marshallObj(b.t, data)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

// postFiles sends a multipart form; files maps a field to file name/content pairs.
func (b *browser) postFiles(path string, fields map[string]string, field string, files map[string]string, ajax bool) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(b.t, w.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(b.t, err)
		_, err = io.WriteString(fw, data)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if ajax {
		req.Header.Set("Accept", "application/json")
	}
	return b.do(req)
}

// session returns the stored session of the browser.
func (b *browser) session() *session.Session {
	c, ok := b.cookies["session_id"]
	require.True(b.t, ok, "no session cookie")
	s, err := b.app.sessions.Load(context.Background(), c.Value)
	require.NoError(b.t, err)
	return s
}

type httpTest struct {
	name         string
	method       string
	path         string
	form         url.Values
	wantCode     int
	wantLocation string
	wantBody     []string
}

func newRequest(method, path string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, httptest.NewRecorder()
}

func runHTTPTests(t *testing.T, b *browser, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := newRequest(methodOf(tt), tt.path, tt.form)
			checkCodeAndBody(t, tt, b.do(req))
		})
	}
}

func checkCodeAndBody(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantLocation != "" {
		assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
	}
	for _, want := range tt.wantBody {
		assert.Contains(t, rec.Body.String(), want)
	}
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decodeJSON(): %v; body %s", err, rec.Body.String())
	}
}
