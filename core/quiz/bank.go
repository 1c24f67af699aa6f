package quiz

import (
	"io/fs"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Subject is a quiz topic; it may have no questions yet.
type Subject struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Icon      string     `yaml:"icon"`
	Desc      string     `yaml:"desc"`
	Questions []Question `yaml:"questions"`
}

// Bank holds the subjects in display order.
type Bank struct {
	Subjects []Subject `yaml:"subjects"`
}

// LoadBank reads the question bank from a YAML file of fsys.
func LoadBank(fsys fs.FS, name string) (*Bank, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading question bank")
	}
	var b Bank
	if err := yaml.UnmarshalStrict(data, &b); err != nil {
		return nil, errors.Wrap(err, "parsing question bank")
	}
	return &b, nil
}

func (b *Bank) Subject(id string) (Subject, error) {
	for _, s := range b.Subjects {
		if s.ID == id {
			return s, nil
		}
	}
	return Subject{}, ErrUnknownSubject
}
