package services

import (
	"strings"
	"testing"
)

const sampleDraft = "A Sample Protocol Extension\n" +
	"\n" +
	"Abstract\n" +
	"\n" +
	"This document describes a sample extension.\n" +
	"It exists for testing.\n" +
	"\n" +
	"1. Introduction\n" +
	"\n" +
	"Words.\n\f" +
	"More words on page two.\n"

func TestParseFileText(t *testing.T) {
	settings := testSettings(t)

	meta, problems := ParseFile(settings, UploadedFile{
		Filename: "draft-example-sample-00.txt",
		Content:  []byte(sampleDraft),
	})
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if meta.Name != "draft-example-sample" || meta.Rev != "00" {
		t.Errorf("parsed %s-%s", meta.Name, meta.Rev)
	}
	if meta.Title != "A Sample Protocol Extension" {
		t.Errorf("title = %q", meta.Title)
	}
	if !strings.Contains(meta.Abstract, "sample extension") {
		t.Errorf("abstract = %q", meta.Abstract)
	}
	if meta.Pages != 2 {
		t.Errorf("pages = %d, want 2", meta.Pages)
	}
}

func TestParseFileRejections(t *testing.T) {
	settings := testSettings(t)
	settings.MaxTxtBytes = 10

	tests := []struct {
		name string
		file UploadedFile
	}{
		{"bad extension", UploadedFile{Filename: "draft-example-a-00.docx", Content: []byte("x")}},
		{"bad filename", UploadedFile{Filename: "mydraft.txt", Content: []byte("x")}},
		{"one-digit revision", UploadedFile{Filename: "draft-example-a-0.txt", Content: []byte("x")}},
		{"oversize", UploadedFile{Filename: "draft-example-a-00.txt", Content: []byte(strings.Repeat("x", 100))}},
		{"invalid utf8", UploadedFile{Filename: "draft-example-b-00.txt", Content: []byte{0xff, 0xfe, 0x00}}},
		{"pdf without magic", UploadedFile{Filename: "draft-example-a-00.pdf", Content: []byte("not a pdf")}},
		{"ps without magic", UploadedFile{Filename: "draft-example-a-00.ps", Content: []byte("not ps")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, problems := ParseFile(settings, tt.file)
			if len(problems) == 0 {
				t.Error("expected a critical problem")
			}
		})
	}
}

func TestParseAllRequiresText(t *testing.T) {
	settings := testSettings(t)

	_, verr := ParseAll(settings, []UploadedFile{
		{Filename: "draft-example-a-00.xml", Content: []byte("<rfc></rfc>")},
	})
	if verr == nil {
		t.Fatal("an upload set without .txt must be rejected")
	}
}

func TestParseAllRequiresAgreement(t *testing.T) {
	settings := testSettings(t)

	_, verr := ParseAll(settings, []UploadedFile{
		{Filename: "draft-example-a-00.txt", Content: []byte(sampleDraft)},
		{Filename: "draft-example-a-01.xml", Content: []byte("<rfc></rfc>")},
	})
	if verr == nil {
		t.Fatal("disagreeing revisions must be rejected")
	}
}

func TestParseAllHappyPath(t *testing.T) {
	settings := testSettings(t)

	meta, verr := ParseAll(settings, []UploadedFile{
		{Filename: "draft-example-a-03.txt", Content: []byte(sampleDraft)},
		{Filename: "draft-example-a-03.xml", Content: []byte("<rfc><front/></rfc>")},
	})
	if verr != nil {
		t.Fatalf("unexpected rejection: %v", verr)
	}
	if meta.Name != "draft-example-a" || meta.Rev != "03" {
		t.Errorf("primary metadata = %s-%s", meta.Name, meta.Rev)
	}
}
