// Package handler defines the contract between the execution engine and the
// pluggable exploration handlers, along with the registry that maps task-type
// tags to handler implementations. The engine never inspects what a handler
// computes; it only shapes the handler's Result into an outcome record.
package handler
