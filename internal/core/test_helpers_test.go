package core

import (
	"context"
	"sync"
	"time"

	"nexonsite/pkg/domain"
)

func adminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{Subject: "editor", Role: domain.RoleAdmin})
}

// stepClock returns a clock advancing one minute per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newTestService(opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{WithClock(stepClock())}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func intPtr(n int) *int { return &n }
