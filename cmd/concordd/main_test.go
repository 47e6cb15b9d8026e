package main

import (
	"errors"
	"testing"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), exitUsageError},
		{"usage error", exitUsageErr{errors.New("bad flag")}, exitUsageError},
		{"validation error", exitValidationErr{errors.New("bad sync")}, exitValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Fatalf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
