// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package sdkerrors implements the error taxonomy client runtimes need:
// a base SDK exception family, a typed attribute bag for error metadata,
// and the parser/serde/credentials-specific error types layered on top.
package sdkerrors

import (
	"fmt"
)

// attrKey is an unexported key type so Attributes can only be read
// and written through the typed accessors below, never by arbitrary
// string keys from outside the package.
type attrKey int

const (
	keyRetryable attrKey = iota
	keyThrottling
	keyErrorCode
	keyErrorMessage
	keyErrorType
	keyRequestID
)

// ErrorType classifies a service error per spec §7.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeClient
	ErrorTypeServer
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeClient:
		return "Client"
	case ErrorTypeServer:
		return "Server"
	default:
		return "Unknown"
	}
}

// Attributes is a typed key/value bag attached to SdkBaseException. Keys
// are compile-time typed (unexported attrKey constants) so callers can
// never stash untyped metadata that later code must guess the type of.
type Attributes struct {
	values map[attrKey]any
}

func newAttributes() Attributes {
	return Attributes{values: make(map[attrKey]any)}
}

func (a *Attributes) set(k attrKey, v any) {
	if a.values == nil {
		a.values = make(map[attrKey]any)
	}
	a.values[k] = v
}

func (a Attributes) get(k attrKey) (any, bool) {
	v, ok := a.values[k]
	return v, ok
}

// Retryable reports whether the Retryable attribute was set, and its value.
func (a Attributes) Retryable() (bool, bool) {
	v, ok := a.get(keyRetryable)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// ThrottlingError reports whether the ThrottlingError attribute was set, and its value.
func (a Attributes) ThrottlingError() (bool, bool) {
	v, ok := a.get(keyThrottling)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// ErrorCode returns the service ErrorCode attribute, if set.
func (a Attributes) ErrorCode() (string, bool) {
	v, ok := a.get(keyErrorCode)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// ErrorMessage returns the service ErrorMessage attribute, if set.
func (a Attributes) ErrorMessage() (string, bool) {
	v, ok := a.get(keyErrorMessage)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// ErrorKind returns the service ErrorType attribute, if set.
func (a Attributes) ErrorKind() (ErrorType, bool) {
	v, ok := a.get(keyErrorType)
	if !ok {
		return ErrorTypeUnknown, false
	}
	return v.(ErrorType), true
}

// RequestID returns the service RequestId attribute, if set.
func (a Attributes) RequestID() (string, bool) {
	v, ok := a.get(keyRequestID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SdkBaseException is the root of the SDK error hierarchy. It carries a
// message, an optional cause, and a typed attribute bag.
type SdkBaseException struct {
	Message string
	Cause   error
	Attrs   Attributes
}

func (e *SdkBaseException) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SdkBaseException) Unwrap() error { return e.Cause }

// WithRetryable sets the Retryable attribute and returns the receiver
// for chaining at construction time.
func (e *SdkBaseException) WithRetryable(v bool) *SdkBaseException {
	e.Attrs.set(keyRetryable, v)
	return e
}

// WithThrottling sets the ThrottlingError attribute.
func (e *SdkBaseException) WithThrottling(v bool) *SdkBaseException {
	e.Attrs.set(keyThrottling, v)
	return e
}

// ClientException is raised for request construction / validation
// failures detected before a service ever saw the request.
type ClientException struct {
	SdkBaseException
}

// NewClientException builds a ClientException wrapping cause (which may be nil).
func NewClientException(message string, cause error) *ClientException {
	return &ClientException{SdkBaseException{Message: message, Cause: cause, Attrs: newAttributes()}}
}

// ServiceException represents an error response returned by a service,
// with protocol metadata attached via the typed attribute bag.
type ServiceException struct {
	SdkBaseException
	ProtocolResponse any
}

// NewServiceException builds a ServiceException with the given service
// error code/message/type/requestID recorded as typed attributes.
func NewServiceException(message, errorCode, errorMessage string, errType ErrorType, requestID string, protocolResponse any) *ServiceException {
	se := &ServiceException{
		SdkBaseException: SdkBaseException{Message: message, Attrs: newAttributes()},
		ProtocolResponse: protocolResponse,
	}
	se.Attrs.set(keyErrorCode, errorCode)
	se.Attrs.set(keyErrorMessage, errorMessage)
	se.Attrs.set(keyErrorType, errType)
	se.Attrs.set(keyRequestID, requestID)
	return se
}

// ParseError is a recoverable parse-combinator failure: a position and
// a message. alt() catches these to try alternatives.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

// NewParseError builds a ParseError at pos.
func NewParseError(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IncompleteInput signals that more bytes are needed to decide whether
// a parser matches; distinct from a syntactic ParseError so alt() can
// tell "definitely wrong" from "not enough input yet" apart.
type IncompleteInput struct {
	Pos    int
	Needed int
}

func (e *IncompleteInput) Error() string {
	return fmt.Sprintf("incomplete input at position %d: needed %d more byte(s)", e.Pos, e.Needed)
}

// DeserializationException covers XML/serde-framework decode failures.
// Message should include position + a short caret-annotated snippet
// when the underlying error came from a lexer/parser.
type DeserializationException struct {
	SdkBaseException
}

// NewDeserializationException builds a DeserializationException.
func NewDeserializationException(message string, cause error) *DeserializationException {
	return &DeserializationException{SdkBaseException{Message: message, Cause: cause, Attrs: newAttributes()}}
}

// SerializationException covers serializer-side failures (e.g. writing
// a sparse-map null into a non-sparse descriptor, or an unsupported
// SerialKind for the target format).
type SerializationException struct {
	SdkBaseException
}

// NewSerializationException builds a SerializationException.
func NewSerializationException(message string, cause error) *SerializationException {
	return &SerializationException{SdkBaseException{Message: message, Cause: cause, Attrs: newAttributes()}}
}

// CredentialsProviderException is raised when every provider in a chain
// failed to resolve credentials. Failures is ordered the way the chain
// tried them; treat them as suppressed exceptions attached to this one.
type CredentialsProviderException struct {
	SdkBaseException
	Failures []ProviderFailure
}

// ProviderFailure names one failed attempt within a credentials chain.
type ProviderFailure struct {
	ProviderName string
	Err          error
}

// NewCredentialsProviderException builds the exception from the ordered
// list of per-provider failures, rendering a chain-diagnostics message.
func NewCredentialsProviderException(failures []ProviderFailure) *CredentialsProviderException {
	msg := "no credentials provider in the chain could resolve credentials:"
	for _, f := range failures {
		msg += fmt.Sprintf(" [%s: %v]", f.ProviderName, f.Err)
	}
	return &CredentialsProviderException{
		SdkBaseException: SdkBaseException{Message: msg, Attrs: newAttributes()},
		Failures:         failures,
	}
}
