package content

import (
	"io/fs"
	"sort"
	"strings"

	"github.com/placementcell/portal/core"
)

// Course sorts
const (
	SortDefault      = "default"
	SortTitleAsc     = "title-asc"
	SortTitleDesc    = "title-desc"
	SortStudentsDesc = "students-desc"
)

type (
	Lesson struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	}

	Course struct {
		ID               int      `yaml:"id"`
		Slug             string   `yaml:"slug"`
		Title            string   `yaml:"title"`
		Subtitle         string   `yaml:"subtitle"`
		Description      string   `yaml:"description"`
		Image            string   `yaml:"image"`
		Duration         string   `yaml:"duration"`
		Students         int      `yaml:"students"`
		Level            string   `yaml:"level"`
		Category         string   `yaml:"category"`
		Overview         string   `yaml:"overview"`
		WhatYouWillLearn []string `yaml:"whatYouWillLearn"`
		Curriculum       []Lesson `yaml:"curriculum"`
	}

	Catalog struct {
		Courses []Course `yaml:"courses"`
	}

	CourseFilter struct {
		Search   string `query:"search"`
		Category string `query:"category"`
		Sort     string `query:"sort"`
	}
)

func LoadCatalog(fsys fs.FS, name string) (*Catalog, error) {
	var c Catalog
	if err := loadYAML(fsys, name, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Categories lists the course categories in catalog order, preceded by "all".
func (c *Catalog) Categories() []string {
	cats := []string{AllTags}
	seen := make(map[string]bool)
	for _, crs := range c.Courses {
		if !seen[crs.Category] {
			seen[crs.Category] = true
			cats = append(cats, crs.Category)
		}
	}
	return cats
}

// Filter returns a new slice of the courses matching the filter, sorted by filter.Sort (catalog order by default).
func (c *Catalog) Filter(filter CourseFilter) []Course {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	courses := make([]Course, 0, len(c.Courses))
	for _, crs := range c.Courses {
		if search != "" && !strings.Contains(strings.ToLower(crs.Title), search) {
			continue
		}
		if filter.Category != "" && filter.Category != AllTags && crs.Category != filter.Category {
			continue
		}
		courses = append(courses, crs)
	}

	switch filter.Sort {
	case SortTitleAsc:
		sort.SliceStable(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	case SortTitleDesc:
		sort.SliceStable(courses, func(i, j int) bool { return courses[i].Title > courses[j].Title })
	case SortStudentsDesc:
		sort.SliceStable(courses, func(i, j int) bool { return courses[i].Students > courses[j].Students })
	}
	return courses
}

func (c *Catalog) Course(slug string) (Course, error) {
	for _, crs := range c.Courses {
		if crs.Slug == slug {
			return crs, nil
		}
	}
	return Course{}, core.ErrNotFound
}
