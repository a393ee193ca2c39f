package middleware

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxQuestionLength = 32000
	maxQuestions      = 20
	maxFileNameLength = 255
)

// Remote ids are opaque tokens such as thread_abc123 or file-XyZ.
var resourceID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateQuestion validates the text of one user question.
func ValidateQuestion(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("question cannot be empty")
	}
	if len(content) > maxQuestionLength {
		return errors.New("question exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("question must be valid UTF-8")
	}
	return nil
}

// ValidateQuestions validates the question list of an analysis request.
func ValidateQuestions(questions []string) error {
	if len(questions) == 0 {
		return errors.New("at least one question is required")
	}
	if len(questions) > maxQuestions {
		return fmt.Errorf("at most %d questions are allowed", maxQuestions)
	}
	for i, q := range questions {
		if err := ValidateQuestion(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateResourceID validates a remote thread, file, run or agent id.
func ValidateResourceID(kind, id string) error {
	if !resourceID.MatchString(id) {
		return fmt.Errorf("invalid %s ID format", kind)
	}
	return nil
}

// ValidateFileName validates the client-supplied name of an upload.
func ValidateFileName(name string) error {
	if name == "" {
		return errors.New("file name cannot be empty")
	}
	if len(name) > maxFileNameLength {
		return errors.New("file name exceeds maximum length")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return errors.New("file name must not contain a path")
	}
	if !utf8.ValidString(name) {
		return errors.New("file name must be valid UTF-8")
	}
	return nil
}
