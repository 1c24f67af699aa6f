package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/placementcell/portal/core/upload"
	"github.com/placementcell/portal/services/api"
)

// subjectDir is a sub-directory of PDF papers, named after their subject.
type subjectDir struct {
	name  string
	files []string // paths
}

// scanSubjects lists the sub-directories of dir holding PDF files, sorted by name.
func scanSubjects(dir string) ([]subjectDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading papers dir")
	}

	var subjects []subjectDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading subject %s", e.Name())
		}
		sd := subjectDir{name: e.Name()}
		for _, f := range files {
			if !f.IsDir() && strings.EqualFold(filepath.Ext(f.Name()), ".pdf") {
				sd.files = append(sd.files, filepath.Join(dir, e.Name(), f.Name()))
			}
		}
		if len(sd.files) > 0 {
			sort.Strings(sd.files)
			subjects = append(subjects, sd)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].name < subjects[j].name })
	return subjects, nil
}

func (cli *commandLine) uploadPapers(ctx context.Context, client *api.Client, dir string, meta upload.Meta) error {
	subjects, err := scanSubjects(dir)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return errors.Errorf("no PDF files found under %s", dir)
	}

	byName := make(map[string]subjectDir, len(subjects))
	queue := upload.Queue{Tasks: make([]upload.Task, 0, len(subjects))}
	for _, sd := range subjects {
		byName[sd.name] = sd
		queue.Tasks = append(queue.Tasks, upload.Task{ID: sd.name, Name: sd.name, Status: upload.Pending})
	}
	fmt.Fprintf(cli.out, "Uploading %d subjects for %s semester %d (%s, %s)\n",
		len(subjects), meta.Branch, meta.Semester, meta.Category, meta.University)

	runner := cli.runner
	runner.OnProgress = func(p upload.Progress) {
		line := fmt.Sprintf("[%3d%%] %s: %s", p.Percent(), p.Task.Name, p.Task.Status)
		if p.Task.Reason != "" {
			line += " (" + p.Task.Reason + ")"
		}
		fmt.Fprintln(cli.out, line)
	}

	res, err := runner.Run(ctx, &queue, func(ctx context.Context, t upload.Task) error {
		return uploadSubject(ctx, client, meta, byName[t.ID])
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cli.out, res.Message())
	if !res.AllSucceeded() {
		return errors.Errorf("failed subjects: %s", strings.Join(res.FailedNames(), ", "))
	}
	return nil
}

func uploadSubject(ctx context.Context, client *api.Client, meta upload.Meta, sd subjectDir) error {
	files := make([]api.NamedReader, 0, len(sd.files))
	for _, path := range sd.files {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, api.NamedReader{Name: filepath.Base(path), Reader: f})
	}
	return client.UploadPapers(ctx, meta, sd.name, files)
}

func (cli *commandLine) uploadZip(ctx context.Context, client *api.Client, path, university string) error {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return errors.Errorf("%s is not a zip archive", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer f.Close()

	if err := client.UploadZip(ctx, university, api.NamedReader{Name: filepath.Base(path), Reader: f}); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s uploaded\n", filepath.Base(path))
	return nil
}
