package api

import (
	"context"
	"io"

	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/upload"
)

// Resource is an admin collection following REST conventions: collection root + /:id.
type Resource[T any] struct {
	c    *Client
	path string
}

func (r Resource[T]) List(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	err := r.c.Get(ctx, r.path, nil, &items)
	return items, err
}

func (r Resource[T]) Create(ctx context.Context, item T) (T, error) {
	var created T
	err := r.c.Post(ctx, r.path, item, &created)
	return created, err
}

func (r Resource[T]) Update(ctx context.Context, id int64, item T) (T, error) {
	var updated T
	err := r.c.Put(ctx, itemPath(r.path, id), item, &updated)
	return updated, err
}

func (r Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.c.Delete(ctx, itemPath(r.path, id))
}

func (c *Client) Jobs() Resource[portal.Job]                 { return Resource[portal.Job]{c, "/admin/jobs"} }
func (c *Client) Users() Resource[portal.Account]            { return Resource[portal.Account]{c, "/admin/users"} }
func (c *Client) Departments() Resource[portal.Department]   { return Resource[portal.Department]{c, "/admin/departments"} }
func (c *Client) Interviews() Resource[portal.Interview]     { return Resource[portal.Interview]{c, "/admin/interviews"} }
func (c *Client) Gallery() Resource[portal.GalleryItem]      { return Resource[portal.GalleryItem]{c, "/admin/gallery"} }
func (c *Client) Companies() Resource[portal.Company]        { return Resource[portal.Company]{c, "/admin/companies"} }
func (c *Client) Applications() Resource[portal.Application] { return Resource[portal.Application]{c, "/admin/applications"} }

type statusUpdate struct {
	Status string `json:"status"`
}

func (c *Client) SetInterviewStatus(ctx context.Context, id int64, status portal.InterviewStatus) error {
	return c.Put(ctx, itemPath("/admin/interviews", id)+"/status", statusUpdate{string(status)}, nil)
}

func (c *Client) SetApplicationStatus(ctx context.Context, id int64, status portal.ApplicationStatus) error {
	return c.Put(ctx, itemPath("/admin/applications", id)+"/status", statusUpdate{string(status)}, nil)
}

type credentials struct {
	Username     string `json:"username,omitempty"`
	ComputerCode string `json:"computerCode,omitempty"`
	Password     string `json:"password"`
}

// Login authenticates students with their computer code, admins with their username.
func (c *Client) Login(ctx context.Context, studentLogin bool, identifier, password string) (portal.LoginResult, error) {
	creds := credentials{Password: password}
	if studentLogin {
		creds.ComputerCode = identifier
	} else {
		creds.Username = identifier
	}
	var res portal.LoginResult
	err := c.Post(ctx, "/auth/login", creds, &res)
	return res, err
}

// ListJobs returns the public job listing.
func (c *Client) ListJobs(ctx context.Context) ([]portal.Job, error) {
	jobs := make([]portal.Job, 0)
	err := c.root().Get(ctx, "/jobs", nil, &jobs)
	return jobs, err
}

// Apply submits an application with its resume.
func (c *Client) Apply(ctx context.Context, app portal.JobApplication, resumeName string, resume io.Reader) error {
	form := NewForm().
		Add("jobId", formatID(app.JobID)).
		Add("applicantName", app.ApplicantName).
		Add("applicantEmail", app.ApplicantEmail).
		Add("applicantPhone", app.ApplicantPhone).
		Add("applicantRollNo", app.ApplicantRollNo).
		Add("coverLetter", app.CoverLetter).
		AddFile("resume", resumeName, resume).
		Add("jobTitle", app.JobTitle).
		Add("companyName", app.CompanyName)
	return c.PostForm(ctx, "/apply-job", form, nil)
}

// MyApplications lists the applications of the logged in user with their status.
func (c *Client) MyApplications(ctx context.Context) ([]portal.Application, error) {
	apps := make([]portal.Application, 0)
	err := c.Get(ctx, "/job-applications/my", nil, &apps)
	return apps, err
}

// AppliedJobIDs returns the ids of the jobs the user applied to.
func (c *Client) AppliedJobIDs(ctx context.Context) (map[int64]bool, error) {
	apps, err := c.MyApplications(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(apps))
	for _, a := range apps {
		ids[a.JobID] = true
	}
	return ids, nil
}

// PublicGallery is the gallery shown to visitors.
func (c *Client) PublicGallery(ctx context.Context) ([]portal.GalleryItem, error) {
	items := make([]portal.GalleryItem, 0)
	err := c.Get(ctx, "/gallery", nil, &items)
	return items, err
}

func (c *Client) ListPapers(ctx context.Context) ([]portal.Paper, error) {
	papers := make([]portal.Paper, 0)
	err := c.Get(ctx, "/papers", nil, &papers)
	return papers, err
}

func (c *Client) DeletePaper(ctx context.Context, id int64) error {
	return c.Delete(ctx, itemPath("/papers", id))
}

// NamedReader is a file to upload.
type NamedReader struct {
	Name string
	io.Reader
}

// UploadPapers uploads the files of one subject.
func (c *Client) UploadPapers(ctx context.Context, meta upload.Meta, subject string, files []NamedReader) error {
	form := NewForm().
		Add("branch", meta.Branch).
		AddInt("semester", meta.Semester).
		Add("subject", subject).
		AddInt("year", meta.Year).
		Add("category", meta.Category).
		Add("university", meta.University).
		Add("title", subject)
	for _, f := range files {
		form.AddFile("files", f.Name, f.Reader)
	}
	return c.PostForm(ctx, "/papers/upload-multiple", form, nil)
}

// UploadZip sends an archive the backend sorts into papers itself.
func (c *Client) UploadZip(ctx context.Context, university string, zip NamedReader) error {
	form := NewForm().
		AddFile("file", zip.Name, zip.Reader).
		Add("university", university).
		AddInt("year", 0)
	return c.PostForm(ctx, "/papers/bulk-upload-zip", form, nil)
}

// Health pings <root>/api/health.
func (c *Client) Health(ctx context.Context) error {
	return c.root().Get(ctx, "/api/health", nil, nil)
}

// root returns a client rooted at the backend's root URL.
func (c *Client) root() *Client {
	cc := *c
	cc.baseURL = c.rootURL
	return &cc
}
