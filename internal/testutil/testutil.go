// Package testutil provides shared fixtures for package tests: an
// in-memory store, a seeded campus project, and canned IOS configs.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/netval-app/netval/pkg/store"
)

// Context returns a test context with a deadline, cancelled on cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// OpenStore returns an in-memory store, closed on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
