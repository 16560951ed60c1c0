package services

import "errors"

var (
	// ErrConfigurationMissing means the knowledge base directory is absent.
	ErrConfigurationMissing = errors.New("knowledge base path does not exist")
	// ErrCountryNotFound is returned by lookups for countries without an index.
	ErrCountryNotFound = errors.New("country not found")
	// ErrUnreadableDocument wraps any failure to load or parse a document.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrIndexBackendUnavailable wraps embedding or vector store failures.
	ErrIndexBackendUnavailable = errors.New("index backend unavailable")
	// ErrEmailDeliveryFailed wraps mail provider failures.
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
)
