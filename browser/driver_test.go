package browser

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDriverErrorUnwrap(t *testing.T) {
	inner := errors.New("element not found")
	err := &DriverError{Op: "click", Target: "#go", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("Unwrap lost the cause")
	}
	if !strings.Contains(err.Error(), "click") || !strings.Contains(err.Error(), "#go") {
		t.Fatalf("message = %s", err.Error())
	}
}

func TestNewDriverDefaultTimeout(t *testing.T) {
	d := NewDriver(nil, 0)
	if d.timeout != 15*time.Second {
		t.Fatalf("timeout = %v", d.timeout)
	}
	d = NewDriver(nil, time.Second)
	if d.timeout != time.Second {
		t.Fatalf("timeout = %v", d.timeout)
	}
}
