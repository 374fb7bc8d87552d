package main

import (
	"strings"
	"testing"
)

func TestRunReturnsStartupError(t *testing.T) {
	t.Setenv("ENGINE_THREADS", "lots")

	err := run(options{games: 1, plies: 10})
	if err == nil {
		t.Fatal("expected an error for a malformed ENGINE_THREADS")
	}
	if !strings.Contains(err.Error(), "startup") {
		t.Fatalf("error = %q, want it to mention startup", err)
	}
}
