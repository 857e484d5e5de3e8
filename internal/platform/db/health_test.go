package db

import (
	"context"
	"errors"
	"testing"
)

func TestCheckDependencies_AllHealthy(t *testing.T) {
	deps := []Dependency{
		{Name: "lock:redis", Ping: func(context.Context) error { return nil }},
		{Name: "amqp", Ping: func(context.Context) error { return nil }},
	}

	statuses, ok := CheckDependencies(context.Background(), deps)
	if !ok {
		t.Fatal("expected all dependencies healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy || s.Error != "" {
			t.Errorf("unexpected status %+v", s)
		}
	}
}

func TestCheckDependencies_OneDown(t *testing.T) {
	deps := []Dependency{
		{Name: "lock:redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
		{Name: "amqp", Ping: func(context.Context) error { return nil }},
	}

	statuses, ok := CheckDependencies(context.Background(), deps)
	if ok {
		t.Fatal("expected overall status to be unhealthy")
	}
	if statuses[0].Healthy || statuses[0].Error != "connection refused" {
		t.Errorf("expected redis to be reported down, got %+v", statuses[0])
	}
	if !statuses[1].Healthy {
		t.Errorf("expected amqp to be healthy, got %+v", statuses[1])
	}
}

func TestCheckDependencies_None(t *testing.T) {
	statuses, ok := CheckDependencies(context.Background(), nil)
	if !ok || len(statuses) != 0 {
		t.Errorf("expected healthy with no dependencies, got %v %v", statuses, ok)
	}
}

func TestPoolStats_Unhealthy(t *testing.T) {
	stats := &PoolStats{MaxConns: 20, AcquireDuration: "0s"}
	if stats.Healthy {
		t.Error("zero-value stats should not report healthy")
	}
}
