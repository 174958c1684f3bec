package models

import (
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength  = 140
	MaxTitleLength = 140
	// MaxPhotoForms is the number of photo slots submitted with a new album
	MaxPhotoForms = 5

	reservedAlbumName = "new"
)

// FieldErrors maps a form field to its messages
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FieldErrors) Any() bool {
	return len(e) > 0
}

// Upload is an image file received with a form
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true, ".heic": true,
}

type AlbumForm struct {
	Name   string
	Public bool
}

func (f AlbumForm) Validate() FieldErrors {
	errs := FieldErrors{}
	name := strings.TrimSpace(f.Name)

	switch {
	case name == "":
		errs.Add("name", "This field is required.")
	case utf8.RuneCountInString(name) > MaxNameLength:
		errs.Add("name", "Ensure this value has at most 140 characters.")
	case strings.EqualFold(name, reservedAlbumName):
		errs.Add("name", "Good one, please use a different album title.")
	case strings.Contains(name, "/"):
		// the name is a single path segment of the album URL
		errs.Add("name", "Album names cannot contain \"/\".")
	case name == "." || name == "..":
		errs.Add("name", "Album names cannot be \".\" or \"..\".")
	}
	return errs
}

type PhotoForm struct {
	Title string
	Image *Upload
}

func (f PhotoForm) hasImage() bool {
	return f.Image != nil && (f.Image.Filename != "" || f.Image.Size > 0)
}

// IsEmpty reports a slot the user left blank; blank slots are skipped.
func (f PhotoForm) IsEmpty() bool {
	return strings.TrimSpace(f.Title) == "" && !f.hasImage()
}

func (f PhotoForm) Validate() FieldErrors {
	errs := FieldErrors{}
	title := strings.TrimSpace(f.Title)

	if utf8.RuneCountInString(title) > MaxTitleLength {
		errs.Add("title", "Ensure this value has at most 140 characters.")
	}
	if title != "" && !f.hasImage() {
		errs.Add("image", "Image field cannot be empty.")
	}
	if f.hasImage() && !imageExtensions[strings.ToLower(filepath.Ext(f.Image.Filename))] {
		errs.Add("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	return errs
}
