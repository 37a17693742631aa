package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrNotInitialized  = errors.New("myrepo not initialized: run 'myrepo init' first")
	ErrAlreadyExists   = errors.New("myrepo already initialized")
	ErrRecordNotFound  = errors.New("plugin record not found")
	ErrEmptyIndex      = errors.New("feed index has no URLs")
	ErrInvalidFeed     = errors.New("feed payload is not a JSON array of objects")
	ErrInvalidSettings = errors.New("invalid settings file")
)

// FeedError wraps errors with feed URL context
type FeedError struct {
	URL string
	Op  string
	Err error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new feed error
func NewFeedError(url, op string, err error) *FeedError {
	return &FeedError{URL: url, Op: op, Err: err}
}

// RecordError wraps errors with plugin record context
type RecordError struct {
	Hash string
	Op   string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s: %s: %v", e.Hash, e.Op, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new record error
func NewRecordError(hash, op string, err error) *RecordError {
	return &RecordError{Hash: hash, Op: op, Err: err}
}

// PathError wraps errors with path context
type PathError struct {
	Path string
	Op   string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a new path error
func NewPathError(path, op string, err error) *PathError {
	return &PathError{Path: path, Op: op, Err: err}
}

// CommandError represents a version control command that exited non-zero
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

// NewCommandError creates a new command error
func NewCommandError(command string, exitCode int, output string) *CommandError {
	return &CommandError{Command: command, ExitCode: exitCode, Output: output}
}
