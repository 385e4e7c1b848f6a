package domain_test

import (
	"testing"
	"time"

	"github.com/evetabi/auction/internal/domain"
)

func extendingAuction(now time.Time) *domain.Auction {
	a := runningAuction(now)
	a.AutoExtend = true
	a.ExtendMinutes = 5
	return a
}

func TestExtensionPolicy_InsideWindow(t *testing.T) {
	now := time.Now().UTC()
	a := extendingAuction(now)
	a.EndAt = now.Add(2 * time.Minute)
	a.Status = domain.StatusEndingSoon
	prevEnd := a.EndAt

	ext := domain.ExtensionPolicy{}.Evaluate(a, now)
	if ext == nil {
		t.Fatal("bid 2 minutes before close should extend")
	}
	if !ext.NewEndAt.Equal(prevEnd.Add(5 * time.Minute)) {
		t.Errorf("NewEndAt = %v, want %v", ext.NewEndAt, prevEnd.Add(5*time.Minute))
	}
	if !ext.Revive {
		t.Error("ENDING_SOON auction should be revived to RUNNING")
	}

	ext.Apply(a)
	if a.ExtensionCount != 1 {
		t.Errorf("ExtensionCount = %d, want 1", a.ExtensionCount)
	}
	if a.Status != domain.StatusRunning {
		t.Errorf("Status = %s, want RUNNING", a.Status)
	}
	if a.LastExtendedAt == nil || !a.LastExtendedAt.Equal(now) {
		t.Errorf("LastExtendedAt = %v, want %v", a.LastExtendedAt, now)
	}
}

func TestExtensionPolicy_NoExtension(t *testing.T) {
	now := time.Now().UTC()

	cases := map[string]func(a *domain.Auction){
		"auto extend off":   func(a *domain.Auction) { a.AutoExtend = false; a.EndAt = now.Add(time.Minute) },
		"outside window":    func(a *domain.Auction) { a.EndAt = now.Add(10 * time.Minute) },
		"after close":       func(a *domain.Auction) { a.EndAt = now.Add(-time.Second) },
		"zero window":       func(a *domain.Auction) { a.ExtendMinutes = 0; a.EndAt = now.Add(time.Minute) },
		"exactly at close":  func(a *domain.Auction) { a.EndAt = now },
		"cap reached (n=2)": func(a *domain.Auction) { a.EndAt = now.Add(time.Minute); a.ExtensionCount = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := extendingAuction(now)
			mutate(a)
			if ext := (domain.ExtensionPolicy{MaxExtensions: 2}).Evaluate(a, now); ext != nil {
				t.Errorf("expected no extension, got %+v", ext)
			}
		})
	}
}

func TestExtensionPolicy_WindowBoundary(t *testing.T) {
	now := time.Now().UTC()
	a := extendingAuction(now)
	a.EndAt = now.Add(5 * time.Minute)

	if ext := (domain.ExtensionPolicy{}).Evaluate(a, now); ext == nil {
		t.Error("bid exactly at EndAt-extendMinutes should extend")
	}
	if a.Status != domain.StatusRunning {
		t.Error("Evaluate must not mutate the auction")
	}
}
