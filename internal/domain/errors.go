package domain

import "errors"

var (
	// ErrNoArticles is returned when a digest is requested for an empty set.
	ErrNoArticles = errors.New("no articles to compose")
	// ErrTransport marks failures reaching a backend: connectivity, rate limits, 5xx.
	ErrTransport = errors.New("backend transport failure")
	// ErrMalformedOutput marks backend responses that do not satisfy the contract.
	ErrMalformedOutput = errors.New("malformed backend output")
	// ErrDispatch marks a mail transport rejection.
	ErrDispatch = errors.New("digest dispatch failed")
)
