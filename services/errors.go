package services

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes application errors by the component that raised them.
type ErrorKind string

const (
	ErrorKindKnowledgeBase ErrorKind = "knowledge_base"
	ErrorKindRetriever     ErrorKind = "retriever"
	ErrorKindGenerator     ErrorKind = "generator"
)

// AppError is the base error type for the whole pipeline. Every failure that
// crosses a component boundary is one of these; nothing else should leak to
// callers.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on error kind so sentinel-style comparisons work.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewKnowledgeBaseError wraps a failure in knowledge-base load, embedding or search.
func NewKnowledgeBaseError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindKnowledgeBase, Message: message, Err: err}
}

// NewRetrieverError wraps a failure during classification, expansion or search.
func NewRetrieverError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindRetriever, Message: message, Err: err}
}

// NewGeneratorError wraps a failure during prompt assembly or the generation call.
func NewGeneratorError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindGenerator, Message: message, Err: err}
}

// IsKnowledgeBaseError reports whether err is a knowledge-base error.
func IsKnowledgeBaseError(err error) bool {
	return kindOf(err) == ErrorKindKnowledgeBase
}

// IsRetrieverError reports whether err is a retriever error.
func IsRetrieverError(err error) bool {
	return kindOf(err) == ErrorKindRetriever
}

// IsGeneratorError reports whether err is a generator error.
func IsGeneratorError(err error) bool {
	return kindOf(err) == ErrorKindGenerator
}

func kindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
