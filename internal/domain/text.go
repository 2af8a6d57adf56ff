package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 70
	MaxBodyLength        = 3000
	MaxCommentBodyLength = 1000
)

// Title is a post headline: non-empty, bounded, letters, digits and spaces only.
type Title struct {
	value string
}

// DefaultTitle stands in for rows persisted before titles were required.
var DefaultTitle = Title{value: "Untitled"}

func NewTitle(raw string) Result[Title] {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Failure[Title](NewError(InvalidInput, "title must not be empty"))
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return Failure[Title](NewError(InvalidInput, fmt.Sprintf("title must be at most %d characters", MaxTitleLength)))
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return Failure[Title](NewError(InvalidInput, "title may contain only letters, digits and spaces"))
		}
	}
	return Success(Title{value: s})
}

func (t Title) String() string { return t.value }

func (t Title) MarshalText() ([]byte, error) { return []byte(t.value), nil }

// Body is the free-form text of a post.
type Body struct {
	value string
}

var DefaultBody = Body{value: "No content"}

func NewBody(raw string) Result[Body] {
	s, err := boundedText(raw, "body", MaxBodyLength)
	if err != nil {
		return Failure[Body](*err)
	}
	return Success(Body{value: s})
}

func (b Body) String() string { return b.value }

func (b Body) MarshalText() ([]byte, error) { return []byte(b.value), nil }

// CommentBody is the text of a comment; shorter than a post body.
type CommentBody struct {
	value string
}

var DefaultCommentBody = CommentBody{value: "No content"}

func NewCommentBody(raw string) Result[CommentBody] {
	s, err := boundedText(raw, "comment", MaxCommentBodyLength)
	if err != nil {
		return Failure[CommentBody](*err)
	}
	return Success(CommentBody{value: s})
}

func (c CommentBody) String() string { return c.value }

func (c CommentBody) MarshalText() ([]byte, error) { return []byte(c.value), nil }

func boundedText(raw, field string, max int) (string, *Error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		e := NewError(InvalidInput, field+" must not be empty")
		return "", &e
	}
	if utf8.RuneCountInString(s) > max {
		e := NewError(InvalidInput, fmt.Sprintf("%s must be at most %d characters", field, max))
		return "", &e
	}
	return s, nil
}
