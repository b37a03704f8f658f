package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrNotLoggedIn returns an error for commands that need a current account.
func ErrNotLoggedIn() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("not logged in"),
		Suggestion: "Log in with 'imanconnect login' or set IMANCONNECT_USER",
	}
}

// ErrAccountExists returns an error when a username or email is already registered.
func ErrAccountExists(username, email string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("an account with username %q or email %q already exists", username, email),
		Suggestion: "Choose a different username or log in with 'imanconnect login'",
	}
}

// ErrInvalidCredentials returns an error for a failed login.
func ErrInvalidCredentials(username string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid username or password for %s", username),
		Suggestion: "Check the username and password, then try again",
	}
}

// ErrAccountNotFound returns an error when no account has the given username.
func ErrAccountNotFound(username string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("account not found: %s", username),
		Suggestion: "Use 'imanconnect users' to see registered accounts",
	}
}

// ErrScholarNotFound returns an error when no scholar has the given username.
func ErrScholarNotFound(username string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("scholar not found: %s", username),
		Suggestion: "Use 'imanconnect scholars' to see available scholars",
	}
}

// ErrQuestionNotFound returns an error when a fatwa question does not exist.
func ErrQuestionNotFound(id int64) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("question not found: %d", id),
		Suggestion: "Use 'imanconnect fatwa list' to see your questions",
	}
}

// ErrDatabaseUnavailable returns an error when the database cannot be reached.
func ErrDatabaseUnavailable(path string, cause error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("database unavailable at %s: %w", path, cause),
		Suggestion: getSmartSuggestion(cause.Error()),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "permission denied") || strings.Contains(lowerReason, "readonly") {
		return "Check the file permissions of the database and its directory"
	}

	if strings.Contains(lowerReason, "locked") || strings.Contains(lowerReason, "busy") {
		return "Another process is holding the database. Close it and try again"
	}

	if strings.Contains(lowerReason, "exhausted") || strings.Contains(lowerReason, "timeout") {
		return "All database connections are busy. Try again in a moment"
	}

	return "Check database.path in your config file or run 'imanconnect init'"
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-03-01) or today/yesterday/-Nd",
	}
}

// ErrInvalidChoice returns an error for a value outside a fixed set of options.
func ErrInvalidChoice(field, value string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid %s: %s", field, value),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}
