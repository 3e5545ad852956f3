package main

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	runErr   error
	shutdown int
}

func (s *fakeService) Run(context.Context) error { return s.runErr }

func (s *fakeService) Shutdown() { s.shutdown++ }

func TestServeShutsDownOnRunError(t *testing.T) {
	svc := &fakeService{runErr: errors.New("scheduler failed to start")}
	if code := serve(context.Background(), svc); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if svc.shutdown != 1 {
		t.Fatalf("Shutdown called %d times, want 1", svc.shutdown)
	}
}

func TestServeShutsDownOnCleanExit(t *testing.T) {
	svc := &fakeService{}
	if code := serve(context.Background(), svc); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if svc.shutdown != 1 {
		t.Fatalf("Shutdown called %d times, want 1", svc.shutdown)
	}
}
