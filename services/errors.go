package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrJobNotFound    = errors.New("command job not found")
	ErrEmptyCommand   = errors.New("command is empty")
	ErrInvalidLog     = errors.New("invalid log entry")
	ErrInvalidPersona = errors.New("invalid persona")
	ErrPortConflict   = errors.New("port conflict")
	ErrScanTimeout    = errors.New("live scan timed out")
	ErrScanInProgress = errors.New("live scan already in progress")
)

// ConflictError lists the ports that block an activation
type ConflictError struct {
	Subject string // persona name or trap id
	Ports   []int
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		parts = append(parts, strconv.Itoa(p))
	}
	return fmt.Sprintf("%s conflicts on ports %s", e.Subject, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrPortConflict
}
