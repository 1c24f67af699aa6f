package echoweb

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/content"
	"github.com/placementcell/portal/services/api"
)

type pagesApi struct {
	library *content.Library
	client  *api.Client
}

func registerPageRoutes(e *echo.Echo, deps ServerDeps) {
	h := pagesApi{library: deps.Library, client: deps.Client}

	e.GET("/", h.home)
	e.GET("/blog", h.blog)
	e.GET("/blog/:slug", h.post)
	e.GET("/courses", h.courses)
	e.GET("/courses/:slug", h.course)
	e.GET("/gallery", h.gallery)
	e.GET("/resume", h.resume)
	e.POST("/resume", h.saveResume)
}

type homePage struct {
	Courses []content.Course
	Posts   []content.Post
}

func (h *pagesApi) home(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "home", view{
		Title: "Home",
		Data: homePage{
			Courses: firstN(h.library.Catalog.Courses, 3),
			Posts:   firstN(h.library.Blog.Posts, 3),
		},
	})
}

type blogPage struct {
	Posts      []content.Post
	Categories []string
	Active     string
}

func (h *pagesApi) blog(ctx echo.Context) error {
	active := core.CleanString(ctx.QueryParam("category"), true)
	if active == "" {
		active = content.AllTags
	}
	return render(ctx, http.StatusOK, "blog", view{
		Title: "Blog",
		Data: blogPage{
			Posts:      h.library.Blog.Filter(active),
			Categories: content.BlogCategories,
			Active:     active,
		},
	})
}

func (h *pagesApi) post(ctx echo.Context) error {
	p, err := h.library.Blog.Post(ctx.Param("slug"))
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "post", view{Title: p.Title, Data: p})
}

type coursesPage struct {
	Courses    []content.Course
	Categories []string
	Sorts      []string
	Filter     content.CourseFilter
}

func (h *pagesApi) courses(ctx echo.Context) error {
	var filter content.CourseFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to CourseFilter")
	}
	return render(ctx, http.StatusOK, "courses", view{
		Title: "Courses",
		Data: coursesPage{
			Courses:    h.library.Catalog.Filter(filter),
			Categories: h.library.Catalog.Categories(),
			Sorts:      []string{content.SortDefault, content.SortTitleAsc, content.SortTitleDesc, content.SortStudentsDesc},
			Filter:     filter,
		},
	})
}

func (h *pagesApi) course(ctx echo.Context) error {
	c, err := h.library.Catalog.Course(ctx.Param("slug"))
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "course", view{Title: c.Title, Data: c})
}

func (h *pagesApi) gallery(ctx echo.Context) error {
	items, err := h.client.PublicGallery(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing gallery")
	}
	return render(ctx, http.StatusOK, "gallery", view{Title: "Gallery", Data: items})
}

type resumeDraft struct {
	Name       string `form:"name" json:"name"`
	Email      string `form:"email" json:"email"`
	Phone      string `form:"phone" json:"phone"`
	Summary    string `form:"summary" json:"summary"`
	Skills     string `form:"skills" json:"skills"`
	Education  string `form:"education" json:"education"`
	Experience string `form:"experience" json:"experience"`
	Projects   string `form:"projects" json:"projects"`
}

func (h *pagesApi) resume(ctx echo.Context) error {
	var draft resumeDraft
	if raw := getSession(ctx).ResumeDraft; len(raw) > 0 {
		// an unreadable draft is dropped
		_ = json.Unmarshal(raw, &draft)
	}
	return render(ctx, http.StatusOK, "resume", view{Title: "Resume Builder", Form: draft})
}

func (h *pagesApi) saveResume(ctx echo.Context) error {
	s := getSession(ctx)
	if ctx.FormValue("action") == "clear" {
		s.ResumeDraft = nil
		toastInfo(ctx, "Resume draft cleared")
		return seeOther(ctx, "/resume")
	}

	var draft resumeDraft
	if err := ctx.Bind(&draft); err != nil {
		return errors.Wrap(err, "binding to resumeDraft")
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return errors.Wrap(err, "encoding resume draft")
	}
	s.ResumeDraft = raw
	toastSuccess(ctx, "Resume draft saved")
	return seeOther(ctx, "/resume")
}

func firstN[T any](list []T, n int) []T {
	if len(list) < n {
		return list
	}
	return list[:n]
}
