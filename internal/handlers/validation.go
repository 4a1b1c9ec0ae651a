package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"merit/internal/amount"
	"merit/internal/validator"
)

var errInvalidPayload = errors.New("invalid payload")

// parsePoints reads a whole-point amount. Legacy clients send JSON numbers
// such as 5.0, so the raw literal is parsed rather than a float.
func parsePoints(raw json.Number, allowZero bool) (int64, error) {
	if raw == "" {
		if allowZero {
			return 0, nil
		}
		return 0, amount.ErrInvalidAmount
	}
	points, err := amount.Parse(raw.String())
	if err != nil {
		return 0, err
	}
	if points < 0 || (points == 0 && !allowZero) {
		return 0, amount.ErrInvalidAmount
	}
	return points, nil
}

func decodeJSON(r *http.Request, dest any) error {
	return decode(r, dest, false)
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dest any) error {
	return decode(r, dest, true)
}

func decode(r *http.Request, dest any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errInvalidPayload
	}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	err := decoder.Decode(dest)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return errInvalidPayload
	}
	return nil
}

func validSlug(w http.ResponseWriter, slug string) bool {
	if err := validator.ValidateSlug(slug); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slug")
		return false
	}
	return true
}

func validUID(w http.ResponseWriter, uid string) bool {
	if err := validator.ValidateUID(uid); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_transaction_id")
		return false
	}
	return true
}

func normalizedComment(w http.ResponseWriter, comment string) (string, bool) {
	normalized, err := validator.NormalizeComment(comment)
	if err != nil {
		respondError(w, http.StatusBadRequest, "comment_too_long")
		return "", false
	}
	return normalized, true
}
