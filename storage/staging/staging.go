// Package staging keeps the files picked in the paper upload wizard on disk between wizard steps.
package staging

import (
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/session"
	"github.com/placementcell/portal/core/upload"
)

var safeName = regexp.MustCompile(`[^\w.\- ]+`)

// Dir stores files under <root>/<session id>/<file id>/<name>.
type Dir struct {
	root   string
	logger core.Logger
}

func NewDir(conf *core.Config, logger core.Logger) (*Dir, error) {
	if err := os.MkdirAll(conf.Upload.StagingDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating staging dir")
	}
	return &Dir{root: conf.Upload.StagingDir, logger: logger}, nil
}

func (d *Dir) sessionDir(sessionID string) (string, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", errors.Wrapf(core.ErrNotFound, "session %q", sessionID)
	}
	return filepath.Join(d.root, sessionID), nil
}

func (d *Dir) fileDir(sessionID, fileID string) (string, error) {
	sd, err := d.sessionDir(sessionID)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(fileID); err != nil {
		return "", errors.Wrapf(core.ErrNotFound, "file %q", fileID)
	}
	return filepath.Join(sd, fileID), nil
}

// Save copies r to a new staged file of the session.
func (d *Dir) Save(sessionID, name string, r io.Reader) (upload.File, error) {
	f := upload.File{ID: uuid.NewString(), Name: cleanName(name)}
	dir, err := d.fileDir(sessionID, f.ID)
	if err != nil {
		return f, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return f, errors.Wrap(err, "creating file dir")
	}

	out, err := os.Create(filepath.Join(dir, f.Name))
	if err != nil {
		return f, errors.Wrap(err, "creating staged file")
	}
	defer out.Close()

	if f.Size, err = io.Copy(out, r); err != nil {
		_ = os.RemoveAll(dir)
		return f, errors.Wrap(err, "writing staged file")
	}
	return f, errors.Wrap(out.Close(), "closing staged file")
}

// Open opens a staged file; the caller closes it.
func (d *Dir) Open(sessionID string, f upload.File) (io.ReadCloser, error) {
	dir, err := d.fileDir(sessionID, f.ID)
	if err != nil {
		return nil, err
	}
	rc, err := os.Open(filepath.Join(dir, cleanName(f.Name)))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(core.ErrNotFound, "staged file %s", f.Name)
	}
	return rc, errors.Wrap(err, "opening staged file")
}

func (d *Dir) Remove(sessionID, fileID string) error {
	dir, err := d.fileDir(sessionID, fileID)
	if err != nil {
		return err
	}
	return errors.Wrap(os.RemoveAll(dir), "removing staged file")
}

// RemoveSession drops every file staged by the session.
func (d *Dir) RemoveSession(sessionID string) error {
	dir, err := d.sessionDir(sessionID)
	if err != nil {
		return err
	}
	return errors.Wrap(os.RemoveAll(dir), "removing staged files")
}

// MoveSession hands the files staged under one session id over to another.
func (d *Dir) MoveSession(fromID, toID string) error {
	from, err := d.sessionDir(fromID)
	if err != nil {
		return err
	}
	to, err := d.sessionDir(toID)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "moving staged files")
	}
	return nil
}

// Subscribe removes the staged files of sessions that are cleared or logged out, and follows rotated ones.
func (d *Dir) Subscribe(m *session.Manager) (unsubscribe func()) {
	return m.Subscribe(func(e session.Event) {
		switch e.Kind {
		case session.Cleared, session.LoggedOut:
			if err := d.RemoveSession(e.SessionID); err != nil {
				d.logger.Error("removing staged files", err, e.User)
			}
		case session.Rotated:
			if err := d.MoveSession(e.PreviousID, e.SessionID); err != nil {
				d.logger.Error("moving staged files", err, e.User)
			}
		}
	})
}

func cleanName(name string) string {
	name = safeName.ReplaceAllString(filepath.Base(filepath.Clean("/"+name)), "_")
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
