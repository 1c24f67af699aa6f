package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdf(name string) File {
	return File{ID: name, Name: name + ".pdf", Size: 1024}
}

func TestSubjects_minimumOneEntry(t *testing.T) {
	s := NewSubjects()
	require.Len(t, s.Entries, 1)

	only := s.Entries[0].ID
	assert.False(t, s.Remove(only), "removing the last entry is a no-op")
	assert.Len(t, s.Entries, 1)

	second := s.Add()
	assert.Len(t, s.Entries, 2)
	assert.True(t, s.Remove(only))
	assert.Equal(t, []string{second.ID}, []string{s.Entries[0].ID})
	assert.False(t, s.Remove(second.ID))
	assert.False(t, s.Remove("unknown"))
}

func TestSubjects_nameAndCustomNameAreExclusive(t *testing.T) {
	s := NewSubjects()
	id := s.Entries[0].ID

	require.NoError(t, s.SetName(id, "Operating Systems"))
	require.NoError(t, s.SetCustomName(id, "  Compiler Design "))
	e, _ := s.Entry(id)
	assert.Equal(t, "", e.Name)
	assert.Equal(t, "Compiler Design", e.ResolvedName())

	require.NoError(t, s.SetName(id, "Operating Systems"))
	e, _ = s.Entry(id)
	assert.Equal(t, "", e.CustomName)
	assert.Equal(t, "Operating Systems", e.ResolvedName())

	assert.Equal(t, ErrEntryNotFound, s.SetName("nope", "x"))
}

func TestSubjects_reviewReachability(t *testing.T) {
	tests := []struct {
		name    string
		build   func(s *Subjects)
		wantOK  bool
		wantSub int
		wantFil int
	}{
		{
			name:  "empty entry",
			build: func(s *Subjects) {},
		},
		{
			name: "name without files",
			build: func(s *Subjects) {
				_ = s.SetName(s.Entries[0].ID, "DBMS")
			},
		},
		{
			name: "files without name",
			build: func(s *Subjects) {
				_ = s.AddFiles(s.Entries[0].ID, pdf("a"))
			},
		},
		{
			name: "blank custom name",
			build: func(s *Subjects) {
				_ = s.SetCustomName(s.Entries[0].ID, "   ")
				_ = s.AddFiles(s.Entries[0].ID, pdf("a"))
			},
		},
		{
			name: "one valid, one invalid",
			build: func(s *Subjects) {
				_ = s.SetName(s.Entries[0].ID, "DBMS")
				_ = s.AddFiles(s.Entries[0].ID, pdf("a"))
				e := s.Add()
				_ = s.SetName(e.ID, "Networks")
			},
		},
		{
			name: "all valid",
			build: func(s *Subjects) {
				_ = s.SetName(s.Entries[0].ID, "DBMS")
				_ = s.AddFiles(s.Entries[0].ID, pdf("a"), pdf("b"))
				e := s.Add()
				_ = s.SetCustomName(e.ID, "Cloud Computing")
				_ = s.AddFiles(e.ID, pdf("c"))
			},
			wantOK:  true,
			wantSub: 2,
			wantFil: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSubjects()
			tt.build(&s)

			assert.Equal(t, tt.wantOK, s.Valid())
			r, err := s.StartReview()
			if !tt.wantOK {
				assert.Error(t, err)
				assert.False(t, s.Reviewing)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Reviewing)
			assert.Equal(t, tt.wantSub, r.TotalSubjects)
			assert.Equal(t, tt.wantFil, r.TotalFiles)
			assert.Equal(t, "DBMS", r.Items[0].Subject)
			assert.Equal(t, "Cloud Computing", r.Items[1].Subject)
		})
	}
}

func TestSubjects_removeFile(t *testing.T) {
	s := NewSubjects()
	id := s.Entries[0].ID
	require.NoError(t, s.AddFiles(id, pdf("a"), pdf("b")))

	f, err := s.RemoveFile(id, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", f.Name)
	assert.Equal(t, []File{pdf("b")}, s.Files())

	_, err = s.RemoveFile(id, "a")
	assert.Equal(t, ErrFileNotFound, err)
}

func TestSimilarSubject(t *testing.T) {
	known := []string{"Computer Graphics", "Operating Systems", "Data Structures"}

	got, ok := SimilarSubject("computer graphic", known)
	assert.True(t, ok)
	assert.Equal(t, "Computer Graphics", got)

	_, ok = SimilarSubject("Computer Graphics", known)
	assert.False(t, ok, "exact match is not a typo")

	_, ok = SimilarSubject("Machine Learning", known)
	assert.False(t, ok)

	_, ok = SimilarSubject("", known)
	assert.False(t, ok)
}
