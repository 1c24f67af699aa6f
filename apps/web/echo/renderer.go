package echoweb

import (
	"encoding/json"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/content"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/quiz"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/core/toast"
)

const (
	layoutFile   = "templates/web/layout.gohtml"
	partialsGlob = "templates/web/partials/*.gohtml"
	pagesDir     = "templates/web/pages"
)

// view is the data of every page.
type view struct {
	Title   string
	Path    string
	Session *session.Session
	Toasts  []toast.Toast
	Form    interface{}
	Errors  map[string]string
	Data    interface{}
}

// renderer renders the pages of templates/web/pages, named by their path without extension (eg. "admin/jobs").
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(fsys fs.FS, conf *core.Config) (*renderer, error) {
	funcs := template.FuncMap{
		"appName":       func() string { return conf.AppName },
		"upper":         strings.ToUpper,
		"join":          strings.Join,
		"add":           func(a, b int) int { return a + b },
		"hasInt":        hasInt,
		"hasString":     hasString,
		"mmss":          quiz.FormatElapsed,
		"feedback":      quiz.Feedback,
		"tagSlug":       content.TagSlug,
		"categoryLabel": content.CategoryLabel,
		"millis":        func(d time.Duration) int64 { return d.Milliseconds() },
		"json": func(v interface{}) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"dict":   dict,
		"rounds": rounds,
	}

	r := &renderer{pages: make(map[string]*template.Template)}
	err := fs.WalkDir(fsys, pagesDir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(fp) != ".gohtml" {
			return err
		}
		tmpl, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(fsys, layoutFile, partialsGlob, fp)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", fp)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(fp, pagesDir+"/"), ".gohtml")
		r.pages[name] = tmpl.Option("missingkey=error")
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading web templates")
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return errors.Wrapf(tmpl.ExecuteTemplate(w, "layout", data), "rendering %s", name)
}

// render completes v with the session state and renders the page.
func render(ctx echo.Context, code int, name string, v view) error {
	s := getSession(ctx)
	if s == nil {
		s = &session.Session{}
	}
	v.Session = s
	v.Toasts = s.Toasts.Active(now(ctx))
	v.Path = ctx.Request().URL.Path
	return ctx.Render(code, name, v)
}

// dict builds the argument of a nested template from key/value pairs.
func dict(kv ...interface{}) (map[string]interface{}, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, errors.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// rounds decodes the interview rounds of a job; a broken blob shows as no rounds.
func rounds(blob string) portal.InterviewRounds {
	r, _ := portal.DecodeInterviewRounds(blob)
	return r
}

func hasInt(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func hasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
