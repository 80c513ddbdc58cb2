// Package errors defines the typed errors shared across mpwizard and a
// handler that logs them at a level chosen from their type.
package errors

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrorType is the category of an MPError. It decides how the error is
// logged, whether processing can continue and which HTTP status it maps to.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeFetch      ErrorType = "fetch"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeAssembly   ErrorType = "assembly"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// recoverable lists the types after which generation goes on: a bad value
// is rejected, an unavailable or malformed fragment becomes a gap.
var recoverable = map[ErrorType]bool{
	ErrorTypeValidation: true,
	ErrorTypeFetch:      true,
	ErrorTypeParse:      true,
}

// MPError is the error type shared by every mpwizard package.
type MPError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// New creates an error of type t.
func New(t ErrorType, code, message string, cause error) *MPError {
	return &MPError{
		Type:        t,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: recoverable[t],
	}
}

func (e *MPError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString("[" + e.Code + "] ")
	}
	if e.Component != "" {
		b.WriteString("component:" + e.Component + " ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}

	return b.String()
}

func (e *MPError) Unwrap() error {
	return e.Cause
}

// Is matches another MPError with the same type and code.
func (e *MPError) Is(target error) bool {
	var t *MPError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext attaches a key/value that is logged with the error.
func (e *MPError) WithContext(key string, value interface{}) *MPError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent names the package that raised the error.
func (e *MPError) WithComponent(component string) *MPError {
	e.Component = component

	return e
}

// fields returns the structured logging attributes of e, context keys
// sorted.
func (e *MPError) fields() []interface{} {
	out := []interface{}{"type", e.Type, "code", e.Code}
	if e.Component != "" {
		out = append(out, "component", e.Component)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k, e.Context[k])
	}

	return out
}

func NewValidationError(code, message string) *MPError {
	return New(ErrorTypeValidation, code, message, nil)
}

func NewConfigError(code, message string) *MPError {
	return New(ErrorTypeConfig, code, message, nil)
}

// NewFetchError is raised when a fragment file cannot be retrieved. The
// processor turns it into an inert fragment.
func NewFetchError(code, message string, cause error) *MPError {
	return New(ErrorTypeFetch, code, message, cause)
}

func NewParseError(code, message string, cause error) *MPError {
	return New(ErrorTypeParse, code, message, cause)
}

// NewAssemblyError aborts the whole document.
func NewAssemblyError(code, message string, cause error) *MPError {
	return New(ErrorTypeAssembly, code, message, cause)
}

func NewIOError(code, message string, cause error) *MPError {
	return New(ErrorTypeIO, code, message, cause)
}

func NewInternalError(code, message string, cause error) *MPError {
	return New(ErrorTypeInternal, code, message, cause)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var me *MPError
	if errors.As(err, &me) {
		return me.Recoverable
	}

	return false
}

// IsType reports whether err is an MPError of the given type.
func IsType(err error, t ErrorType) bool {
	var me *MPError
	if errors.As(err, &me) {
		return me.Type == t
	}

	return false
}

// CodeOf returns the code of an MPError, or "" for any other error.
func CodeOf(err error) string {
	var me *MPError
	if errors.As(err, &me) {
		return me.Code
	}

	return ""
}

// UserMessage renders err as a single line suitable for showing to the
// operator. Codes and component tags are dropped.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var me *MPError
	if !errors.As(err, &me) {
		return err.Error()
	}

	msg := me.Message
	if me.Cause != nil {
		msg += ": " + me.Cause.Error()
	}

	switch me.Type {
	case ErrorTypeValidation:
		return "Invalid input: " + msg
	case ErrorTypeAssembly:
		return "Could not generate the management pack: " + msg
	case ErrorTypeParse:
		return "Could not read the XML document: " + msg
	case ErrorTypeConfig:
		return "Configuration error: " + msg
	default:
		return msg
	}
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level chosen from its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var me *MPError
	if !errors.As(err, &me) {
		h.logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	if me.Recoverable {
		h.logger.Warn(ctx, err, "Recoverable error occurred", me.fields()...)

		return
	}
	h.logger.Error(ctx, err, "Error occurred", me.fields()...)
}

// Common error codes.
const (
	ErrCodeMissingIdentity    = "ERR_MISSING_IDENTITY"
	ErrCodeIdentityMismatch   = "ERR_IDENTITY_MISMATCH"
	ErrCodeUnknownFragment    = "ERR_UNKNOWN_FRAGMENT"
	ErrCodeUnknownInstance    = "ERR_UNKNOWN_INSTANCE"
	ErrCodeInvalidCategory    = "ERR_INVALID_CATEGORY"
	ErrCodeFetchFailed        = "ERR_FETCH_FAILED"
	ErrCodeMalformedXML       = "ERR_MALFORMED_XML"
	ErrCodeAssemblyFailed     = "ERR_ASSEMBLY_FAILED"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound       = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL"
	ErrCodeValidationFailed   = "ERR_VALIDATION_FAILED"
	ErrCodeSessionNotFound    = "ERR_SESSION_NOT_FOUND"
	ErrCodeNotManagementPack  = "ERR_NOT_MANAGEMENT_PACK"
	ErrCodeStateDecodeFailure = "ERR_STATE_DECODE"
)
