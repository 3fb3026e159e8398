package calendar

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	notFound := &RemoteAPIError{Op: "patch", StatusCode: 404, NotFound: true, Err: errors.New("gone")}
	if !IsNotFound(notFound) {
		t.Fatal("expected not found")
	}
	if !IsNotFound(fmt.Errorf("upsert: %w", notFound)) {
		t.Fatal("expected wrapped not found")
	}
	if IsNotFound(&RemoteAPIError{Op: "patch", StatusCode: 500, Err: errors.New("boom")}) {
		t.Fatal("server error must not classify as not found")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatal("plain error must not classify as not found")
	}
}

func TestRemoteAPIError_Message(t *testing.T) {
	err := &RemoteAPIError{Op: "insert", StatusCode: 403, Err: errors.New("quota exceeded")}
	if err.Error() != "calendar insert failed (status 403): quota exceeded" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	noStatus := &RemoteAPIError{Op: "list", Err: errors.New("dial tcp: timeout")}
	if noStatus.Error() != "calendar list failed: dial tcp: timeout" {
		t.Fatalf("unexpected message: %s", noStatus.Error())
	}
}
