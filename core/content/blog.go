// Package content loads the static pages (blog posts, courses) from embedded YAML.
package content

import (
	"html/template"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/placementcell/portal/core"
)

// AllTags selects every post.
const AllTags = "all"

// BlogCategories are the tag filters offered on the blog page.
var BlogCategories = []string{AllTags, "tech-skills", "career-growth", "interview-tips", "resume-advice"}

type Post struct {
	ID      int           `yaml:"id"`
	Slug    string        `yaml:"slug"`
	Title   string        `yaml:"title"`
	Date    string        `yaml:"date"`
	Author  string        `yaml:"author"`
	Views   string        `yaml:"views"`
	Tags    []string      `yaml:"tags"`
	Image   string        `yaml:"image"`
	Content template.HTML `yaml:"content"` // trusted, embedded in the binary
}

// TagSlug lower-cases the tag and replaces its first space with a dash ("Career Growth" -> "career-growth").
func TagSlug(tag string) string {
	return strings.Replace(strings.ToLower(tag), " ", "-", 1)
}

func (p Post) HasTag(slug string) bool {
	for _, t := range p.Tags {
		if TagSlug(t) == slug {
			return true
		}
	}
	return false
}

type Blog struct {
	Posts []Post `yaml:"posts"`
}

func LoadBlog(fsys fs.FS, name string) (*Blog, error) {
	var b Blog
	if err := loadYAML(fsys, name, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Filter returns the posts having the tag slug; "all" (or empty) returns every post.
func (b *Blog) Filter(slug string) []Post {
	if slug == "" || slug == AllTags {
		return b.Posts
	}
	posts := make([]Post, 0, len(b.Posts))
	for _, p := range b.Posts {
		if p.HasTag(slug) {
			posts = append(posts, p)
		}
	}
	return posts
}

func (b *Blog) Post(slug string) (Post, error) {
	for _, p := range b.Posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, core.ErrNotFound
}

// CategoryLabel turns "career-growth" into "Career Growth".
func CategoryLabel(slug string) string {
	if slug == AllTags {
		return "All Posts"
	}
	words := strings.Fields(strings.Replace(slug, "-", " ", 1))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func loadYAML(fsys fs.FS, name string, v interface{}) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	return errors.Wrapf(yaml.UnmarshalStrict(data, v), "decoding %s", name)
}
