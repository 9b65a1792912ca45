package services

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"draft-submission-api/config"
	"draft-submission-api/utils"
)

// FileMetadata is what a parser extracts from one uploaded rendition.
type FileMetadata struct {
	Name     string // logical draft name from the filename
	Rev      string // two-digit revision from the filename
	Ext      string
	Title    string
	Abstract string
	Pages    int
	Size     int64
}

// UploadedFile is the intake-side view of one uploaded artifact: its
// declared filename and raw content, before anything is stored.
type UploadedFile struct {
	Filename string
	Content  []byte
}

var allowedExtensions = map[string]bool{
	"txt": true,
	"xml": true,
	"pdf": true,
	"ps":  true,
}

// ParseFile validates one uploaded rendition and extracts its metadata.
// Critical errors (bad filename, oversize, wrong encoding, content not
// matching the extension) abort parsing of this file; exactly one parser
// runs per declared file type, so no two parsers can disagree.
func ParseFile(settings config.Settings, file UploadedFile) (FileMetadata, []FieldError) {
	var critical []FieldError

	base := filepath.Base(file.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if !allowedExtensions[ext] {
		return FileMetadata{}, append(critical, FieldError{
			Field:   base,
			Message: fmt.Sprintf("extension %q is not accepted (txt, xml, pdf, ps)", ext),
		})
	}

	name, rev, err := utils.ParseDraftFilename(stem)
	if err != nil {
		return FileMetadata{}, append(critical, FieldError{Field: base, Message: err.Error()})
	}

	meta := FileMetadata{Name: name, Rev: rev, Ext: ext, Size: int64(len(file.Content))}

	if max := maxSizeFor(settings, ext); meta.Size > max {
		return meta, append(critical, FieldError{
			Field:   base,
			Message: fmt.Sprintf("file is %d bytes, limit for .%s is %d", meta.Size, ext, max),
		})
	}

	switch ext {
	case "txt":
		critical = append(critical, parseText(file.Content, base, &meta)...)
	case "xml":
		if !bytes.Contains(peekBytes(file.Content, 512), []byte("<")) {
			critical = append(critical, FieldError{Field: base, Message: "content does not look like XML"})
		}
	case "pdf":
		if !bytes.HasPrefix(file.Content, []byte("%PDF-")) {
			critical = append(critical, FieldError{Field: base, Message: "content does not look like PDF"})
		}
	case "ps":
		if !bytes.HasPrefix(file.Content, []byte("%!")) {
			critical = append(critical, FieldError{Field: base, Message: "content does not look like PostScript"})
		}
	}

	return meta, critical
}

func parseText(content []byte, field string, meta *FileMetadata) []FieldError {
	if !utf8.Valid(content) {
		return []FieldError{{Field: field, Message: "plain text rendition is not valid UTF-8"}}
	}

	// Title: first non-empty line that is not a header/footer artifact.
	// Page count: form feeds plus one.
	meta.Pages = bytes.Count(content, []byte{'\f'}) + 1

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	inAbstract := false
	var abstract []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if inAbstract && len(abstract) > 0 {
				inAbstract = false
			}
			continue
		}
		if meta.Title == "" && !strings.HasPrefix(line, "draft-") && !strings.Contains(line, "Internet-Draft") {
			meta.Title = line
		}
		if strings.EqualFold(line, "Abstract") {
			inAbstract = true
			continue
		}
		if inAbstract {
			abstract = append(abstract, line)
			if len(abstract) >= 20 {
				inAbstract = false
			}
		}
	}
	meta.Abstract = strings.Join(abstract, " ")
	return nil
}

func maxSizeFor(settings config.Settings, ext string) int64 {
	switch ext {
	case "txt":
		return settings.MaxTxtBytes
	case "xml":
		return settings.MaxXMLBytes
	case "pdf":
		return settings.MaxPDFBytes
	case "ps":
		return settings.MaxPSBytes
	}
	return settings.MaxTxtBytes
}

func peekBytes(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

// ParseAll validates a full upload set: the plain-text rendition is
// mandatory, every file must agree on (name, revision), and each file's
// own critical checks must pass.
func ParseAll(settings config.Settings, files []UploadedFile) (FileMetadata, *ValidationError) {
	verr := &ValidationError{}
	var primary FileMetadata
	var first *FileMetadata

	if len(files) == 0 {
		return FileMetadata{}, verr.Add("files", "at least the plain-text rendition is required")
	}

	for _, f := range files {
		meta, critical := ParseFile(settings, f)
		verr.Problems = append(verr.Problems, critical...)
		if len(critical) > 0 {
			continue
		}
		if first == nil {
			m := meta
			first = &m
		} else if meta.Name != first.Name || meta.Rev != first.Rev {
			verr.Add(filepath.Base(f.Filename), fmt.Sprintf(
				"name/revision %s-%s does not match %s-%s", meta.Name, meta.Rev, first.Name, first.Rev))
		}
		if meta.Ext == "txt" {
			primary = meta
		}
	}

	if primary.Name == "" && !verr.HasProblems() {
		verr.Add("files", "the plain-text rendition (.txt) is mandatory")
	}
	if verr.HasProblems() {
		return FileMetadata{}, verr
	}
	return primary, nil
}
