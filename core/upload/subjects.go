package upload

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/placementcell/portal/core"
)

var (
	ErrEntryNotFound = errors.New("subject not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrInvalidBatch  = errors.New("every subject needs a name and at least one file")

	// similarSubjectRatio is the similarity above which a custom subject name is likely a typo of an existing one.
	similarSubjectRatio = .85
)

// File is a staged file selected for upload.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Entry is one subject of the batch: either picked from the list (Name) or typed (CustomName).
type Entry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CustomName string `json:"customName"`
	Files      []File `json:"files"`
}

// ResolvedName is the custom name when set, the selected name otherwise.
func (e Entry) ResolvedName() string {
	if custom := core.CleanString(e.CustomName); custom != "" {
		return custom
	}
	return e.Name
}

func (e Entry) Valid() bool {
	return e.ResolvedName() != "" && len(e.Files) > 0
}

// Subjects is the multi-subject sub-flow; it always holds at least one entry.
type Subjects struct {
	Entries   []Entry `json:"entries"`
	Reviewing bool    `json:"reviewing"`
}

func NewSubjects() Subjects {
	return Subjects{Entries: []Entry{newEntry()}}
}

func newEntry() Entry {
	return Entry{ID: uuid.NewString()}
}

func (s *Subjects) find(id string) (*Entry, error) {
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			return &s.Entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *Subjects) Entry(id string) (Entry, error) {
	e, err := s.find(id)
	if err != nil {
		return Entry{}, err
	}
	return *e, nil
}

func (s *Subjects) Add() Entry {
	e := newEntry()
	s.Entries = append(s.Entries, e)
	return e
}

// Remove drops an entry; removing the only remaining entry is a no-op.
func (s *Subjects) Remove(id string) bool {
	if len(s.Entries) <= 1 {
		return false
	}
	for i, e := range s.Entries {
		if e.ID == id {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// SetName selects a subject from the list and clears the custom name.
func (s *Subjects) SetName(id, name string) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Name = core.CleanString(name)
	e.CustomName = ""
	return nil
}

// SetCustomName types a subject name and clears the selected one.
func (s *Subjects) SetCustomName(id, name string) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.CustomName = name
	e.Name = ""
	return nil
}

func (s *Subjects) AddFiles(id string, files ...File) error {
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Files = append(e.Files, files...)
	return nil
}

func (s *Subjects) RemoveFile(entryID, fileID string) (File, error) {
	e, err := s.find(entryID)
	if err != nil {
		return File{}, err
	}
	for i, f := range e.Files {
		if f.ID == fileID {
			e.Files = append(e.Files[:i], e.Files[i+1:]...)
			return f, nil
		}
	}
	return File{}, ErrFileNotFound
}

// Valid reports whether every entry has a resolved name and at least one file.
func (s Subjects) Valid() bool {
	if len(s.Entries) == 0 {
		return false
	}
	for _, e := range s.Entries {
		if !e.Valid() {
			return false
		}
	}
	return true
}

// Files lists every staged file of the batch.
func (s Subjects) Files() []File {
	var files []File
	for _, e := range s.Entries {
		files = append(files, e.Files...)
	}
	return files
}

type (
	ReviewItem struct {
		EntryID string
		Subject string
		Files   []File
	}

	Review struct {
		Items         []ReviewItem
		TotalSubjects int
		TotalFiles    int
	}
)

// Review summarizes the batch before commit; it fails unless the batch is valid.
func (s Subjects) Review() (Review, error) {
	if !s.Valid() {
		return Review{}, core.NewValidationError(ErrInvalidBatch)
	}
	r := Review{TotalSubjects: len(s.Entries)}
	for _, e := range s.Entries {
		r.Items = append(r.Items, ReviewItem{EntryID: e.ID, Subject: e.ResolvedName(), Files: e.Files})
		r.TotalFiles += len(e.Files)
	}
	return r, nil
}

// StartReview moves to the review step if the batch is valid.
func (s *Subjects) StartReview() (Review, error) {
	r, err := s.Review()
	if err != nil {
		return r, err
	}
	s.Reviewing = true
	return r, nil
}

// SimilarSubject returns the known subject a custom name most likely misspells.
// Exact (case-insensitive) matches are not reported.
func SimilarSubject(name string, known []string) (string, bool) {
	name = core.CleanString(name, true)
	if name == "" {
		return "", false
	}
	var (
		best      string
		bestRatio float64
	)
	for _, k := range known {
		lk := core.CleanString(k, true)
		if lk == name {
			return "", false
		}
		ratio := difflib.NewMatcher(strings.Split(name, ""), strings.Split(lk, "")).Ratio()
		if ratio > bestRatio {
			best, bestRatio = k, ratio
		}
	}
	if bestRatio >= similarSubjectRatio {
		return best, true
	}
	return "", false
}
