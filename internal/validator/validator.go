package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxCommentLength = 2000

var (
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrInvalidTelegramID = errors.New("invalid telegram id")
	ErrInvalidUID        = errors.New("invalid transaction uid")
	ErrCommentTooLong    = errors.New("comment is too long")
)

var (
	slugRegex       = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)
	telegramIDRegex = regexp.MustCompile(`^-?[0-9]{1,20}$`)
	uidRegex        = regexp.MustCompile(`^[a-zA-Z0-9-]{1,64}$`)
)

func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// ValidateTelegramID accepts user ids and the negative ids of group chats.
func ValidateTelegramID(id string) error {
	if !telegramIDRegex.MatchString(id) {
		return ErrInvalidTelegramID
	}
	return nil
}

func ValidateUID(uid string) error {
	if !uidRegex.MatchString(uid) {
		return ErrInvalidUID
	}
	return nil
}

// NormalizeComment trims surrounding whitespace and checks the length in runes.
func NormalizeComment(comment string) (string, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return "", ErrCommentTooLong
	}
	return comment, nil
}
