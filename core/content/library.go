package content

import (
	"io/fs"

	"github.com/placementcell/portal/core/quiz"
)

// Files of the embedded content directory.
const (
	BlogFile    = "content/blog.yaml"
	CoursesFile = "content/courses.yaml"
	QuizFile    = "content/quiz.yaml"
)

// Library is the static content served by the site.
type Library struct {
	Blog    *Blog
	Catalog *Catalog
	Quiz    *quiz.Bank
}

func LoadLibrary(fsys fs.FS) (*Library, error) {
	blog, err := LoadBlog(fsys, BlogFile)
	if err != nil {
		return nil, err
	}
	catalog, err := LoadCatalog(fsys, CoursesFile)
	if err != nil {
		return nil, err
	}
	bank, err := quiz.LoadBank(fsys, QuizFile)
	if err != nil {
		return nil, err
	}
	return &Library{Blog: blog, Catalog: catalog, Quiz: bank}, nil
}
