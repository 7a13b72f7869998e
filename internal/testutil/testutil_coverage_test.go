package testutil

import (
	"errors"
	"testing"
)

// TestAssertNoError_NilErr tests nil error path.
func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

// TestAssertError_WithErr tests non-nil error path.
func TestAssertError_WithErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

// TestAssertFloatClose_WithinTolerance tests the passing path.
func TestAssertFloatClose_WithinTolerance(t *testing.T) {
	fakeT := &testing.T{}
	AssertFloatClose(fakeT, 3.14159, 3.14160, 1e-4)
	if fakeT.Failed() {
		t.Error("expected no failure when difference is within tolerance")
	}
}

// TestAssertFloatClose_OutsideTolerance tests the failing path.
func TestAssertFloatClose_OutsideTolerance(t *testing.T) {
	fakeT := &testing.T{}
	AssertFloatClose(fakeT, 1.0, 1.1, 1e-6)
	if !fakeT.Failed() {
		t.Error("expected failure when difference exceeds tolerance")
	}
}
