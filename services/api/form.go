package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/pkg/errors"
)

type (
	formField struct {
		name  string
		value string
	}

	formFile struct {
		field    string
		filename string
		content  io.Reader
	}

	// Form is a multipart body; fields and files keep their insertion order.
	Form struct {
		fields []formField
		files  []formFile
	}
)

func NewForm() *Form {
	return new(Form)
}

func (f *Form) Add(name, value string) *Form {
	f.fields = append(f.fields, formField{name, value})
	return f
}

func (f *Form) AddInt(name string, value int) *Form {
	return f.Add(name, strconv.Itoa(value))
}

func (f *Form) AddFile(field, filename string, content io.Reader) *Form {
	f.files = append(f.files, formFile{field, filename, content})
	return f
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", errors.Wrapf(err, "writing field %s", fld.name)
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", errors.Wrapf(err, "creating part %s", file.filename)
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", errors.Wrapf(err, "writing part %s", file.filename)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart body")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
