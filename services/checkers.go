package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

func boolPtr(b bool) *bool { return &b }

// TextualChecker scans the plain-text rendition for encoding problems and
// layout violations. Advisory: a failed result is surfaced to approvers
// but does not by itself block routing.
type TextualChecker struct {
	MaxLineLength int
}

func (c *TextualChecker) Name() string { return "textual" }

func (c *TextualChecker) CheckFileText(path string) (CheckResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return CheckResult{}, err
	}
	defer f.Close()

	result, err := c.checkReader(f)
	if err != nil {
		return CheckResult{}, err
	}
	return result, nil
}

func (c *TextualChecker) CheckFragmentText(fragment string) (CheckResult, error) {
	return c.checkReader(strings.NewReader(fragment))
}

func (c *TextualChecker) checkReader(r io.Reader) (CheckResult, error) {
	maxLine := c.MaxLineLength
	if maxLine <= 0 {
		maxLine = 72
	}

	var res CheckResult
	longLines := 0
	lineno := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineno++
		line := scanner.Bytes()
		if !utf8.Valid(line) {
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: invalid UTF-8", lineno))
			continue
		}
		for _, b := range line {
			if b < 0x20 && b != '\t' {
				res.Errors = append(res.Errors, fmt.Sprintf("line %d: control character 0x%02x", lineno, b))
				break
			}
		}
		if len(line) > maxLine {
			longLines++
			if longLines <= 5 {
				res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: longer than %d characters", lineno, maxLine))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return CheckResult{}, err
	}

	res.Items = map[string]any{"lines": lineno, "long_lines": longLines}
	if len(res.Errors) > 0 {
		res.Passed = boolPtr(false)
		res.Message = fmt.Sprintf("%d textual errors found", len(res.Errors))
	} else {
		res.Passed = boolPtr(true)
		res.Message = "plain text rendition is clean"
	}
	return res, nil
}

// XMLWellFormedChecker verifies the structured-markup source parses.
type XMLWellFormedChecker struct{}

func (c *XMLWellFormedChecker) Name() string { return "xmlwf" }

func (c *XMLWellFormedChecker) CheckFileXML(path string) (CheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CheckResult{}, err
	}
	return c.check(data), nil
}

func (c *XMLWellFormedChecker) CheckFragmentXML(fragment string) (CheckResult, error) {
	return c.check([]byte(fragment)), nil
}

func (c *XMLWellFormedChecker) check(data []byte) CheckResult {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return CheckResult{
				Passed:  boolPtr(false),
				Message: "XML source is not well-formed",
				Errors:  []string{err.Error()},
			}
		}
	}
	return CheckResult{Passed: boolPtr(true), Message: "XML source is well-formed"}
}

// ExternalNitsChecker shells out to a configured nits binary. The binary's
// contract: exit 0 with findings on stdout; a non-zero exit means the
// check itself failed, which is recorded as an unknown verdict.
type ExternalNitsChecker struct {
	Binary  string
	Timeout time.Duration
}

func (c *ExternalNitsChecker) Name() string { return "extnits" }

func (c *ExternalNitsChecker) CheckFileText(path string) (CheckResult, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Verdict unknown, not failed: the tool broke, not the draft.
		return CheckResult{
			Message:  fmt.Sprintf("nits checker did not complete: %v", err),
			Warnings: []string{strings.TrimSpace(stderr.String())},
		}, nil
	}

	out := strings.TrimSpace(stdout.String())
	var res CheckResult
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "ERROR:"):
			res.Errors = append(res.Errors, strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
		case strings.HasPrefix(line, "WARNING:"):
			res.Warnings = append(res.Warnings, strings.TrimSpace(strings.TrimPrefix(line, "WARNING:")))
		}
	}
	if len(res.Errors) > 0 {
		res.Passed = boolPtr(false)
		res.Message = fmt.Sprintf("nits checker found %d errors", len(res.Errors))
	} else {
		res.Passed = boolPtr(true)
		res.Message = "nits checker found no errors"
	}
	res.Items = map[string]any{"raw_output_bytes": len(out)}
	return res, nil
}
