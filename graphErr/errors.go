// Package graphErr maps the core's error taxonomy (spec.md §7) onto
// google.golang.org/grpc/status values, so the service façade and whatever
// transport eventually fronts it (gRPC, HTTP/JSON, or a test harness) share
// one vocabulary and never invent ad hoc string errors.
package graphErr

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InvalidArgument wraps a client input error: bad type_name, malformed
// schema text, invalid JSON-Schema, invalid zookie, metadata failing
// schema.
func InvalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// Unauthenticated wraps a missing/malformed bearer token or a verifier
// rejection.
func Unauthenticated(format string, args ...any) error {
	return status.Errorf(codes.Unauthenticated, format, args...)
}

// PermissionDenied wraps an ownership check failure.
func PermissionDenied(format string, args ...any) error {
	return status.Errorf(codes.PermissionDenied, format, args...)
}

// NotFound wraps a missing object/edge/target lookup.
func NotFound(format string, args ...any) error {
	return status.Errorf(codes.NotFound, format, args...)
}

// Aborted wraps a writer-serialization failure after bounded retries.
func Aborted(format string, args ...any) error {
	return status.Errorf(codes.Aborted, format, args...)
}

// Internal wraps a storage error, an unexpected validator failure, or a
// snapshot parse failure on a trusted path. Callers put the underlying
// error's text in the message; transport/httpapi logs that message and
// sends the client only a generic one for this code.
func Internal(format string, args ...any) error {
	return status.Errorf(codes.Internal, format, args...)
}

// Code returns the grpc status code carried by err, or codes.Unknown if err
// was not constructed by this package.
func Code(err error) codes.Code {
	return status.Code(err)
}
