package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrTargetRequired  = errors.New("target id is required")
	ErrInvalidTargetID = errors.New("target id must be a positive integer")
	ErrTargetNotFound  = errors.New("target not found")
	ErrRecordNotFound  = errors.New("record not found")
	ErrSubmission      = errors.New("observation submission failed")
	ErrPersistence     = errors.New("failed to record submitted observations")
)

// PersistenceError reports observations the facility accepted but that could
// not be stored. ObservationIDs lists what the facility returned so the
// records can be reconciled by hand.
type PersistenceError struct {
	Facility       string
	ObservationIDs []string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v: %s accepted [%s]: %v",
		ErrPersistence, e.Facility, strings.Join(e.ObservationIDs, ", "), e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ParseTargetID validates a target id taken from a request.
func ParseTargetID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrTargetRequired
	}
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTargetID, raw)
	}
	return uint(id), nil
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// Page describes one page of a listing.
type Page struct {
	Number   int   `json:"page"`
	Size     int   `json:"page_size"`
	Count    int64 `json:"count"`
	NumPages int   `json:"num_pages"`
}

func newPage(number, size int, count int64) Page {
	pages := int((count + int64(size) - 1) / int64(size))
	if pages == 0 {
		pages = 1
	}
	return Page{Number: number, Size: size, Count: count, NumPages: pages}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
