package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// FormData is a multipart/form-data body. Fields and files are written in
// the order they were added.
type FormData struct {
	parts   []formPart
	baseDir string
}

type formPart struct {
	name     string
	value    string
	path     string
	filename string
	reader   io.Reader
}

// NewFormData returns an empty form. File paths added later resolve
// relative to baseDir and may not escape it; an empty baseDir allows any path.
func NewFormData(baseDir string) *FormData {
	return &FormData{baseDir: baseDir}
}

// Append adds a text field.
func (f *FormData) Append(name, value string) *FormData {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AppendFile adds a file read from disk at encode time.
func (f *FormData) AppendFile(name, path string) *FormData {
	f.parts = append(f.parts, formPart{name: name, path: path})
	return f
}

// AppendReader adds a file part with content read from r.
func (f *FormData) AppendReader(name, filename string, r io.Reader) *FormData {
	f.parts = append(f.parts, formPart{name: name, filename: filename, reader: r})
	return f
}

// Encode writes the form and returns the body with its content type.
func (f *FormData) Encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, part := range f.parts {
		var err error
		switch {
		case part.reader != nil:
			err = writeFormFile(writer, part.name, part.filename, part.reader)
		case part.path != "":
			err = f.writeDiskFile(writer, part)
		default:
			err = writer.WriteField(part.name, part.value)
		}
		if err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func (f *FormData) writeDiskFile(writer *multipart.Writer, part formPart) error {
	filePath := part.path
	if !filepath.IsAbs(filePath) && f.baseDir != "" {
		filePath = filepath.Join(f.baseDir, filePath)
	}
	if err := validatePathWithinBase(filePath, f.baseDir); err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeFormFile(writer, part.name, filepath.Base(filePath), file)
}

func writeFormFile(writer *multipart.Writer, name, filename string, r io.Reader) error {
	w, err := writer.CreateFormFile(name, filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
