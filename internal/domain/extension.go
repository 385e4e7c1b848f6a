package domain

import "time"

// ExtensionPolicy decides whether an accepted bid pushes out the closing time.
// MaxExtensions caps the number of extensions per auction; zero means
// unlimited.
type ExtensionPolicy struct {
	MaxExtensions int
}

// Extension describes the write an accepted bid triggers.
type Extension struct {
	PrevEndAt  time.Time
	NewEndAt   time.Time
	ExtendedAt time.Time
	// Revive is set when the auction is ENDING_SOON and must go back to RUNNING.
	Revive bool
}

// Evaluate returns the extension for a bid accepted at now, or nil when the
// auction does not extend. a must reflect the row as read inside the bid
// transaction.
func (p ExtensionPolicy) Evaluate(a *Auction, now time.Time) *Extension {
	if !a.AutoExtend || a.ExtendMinutes <= 0 {
		return nil
	}
	if p.MaxExtensions > 0 && a.ExtensionCount >= p.MaxExtensions {
		return nil
	}
	window := a.ExtendWindow()
	if now.Before(a.EndAt.Add(-window)) || !now.Before(a.EndAt) {
		return nil
	}
	return &Extension{
		PrevEndAt:  a.EndAt,
		NewEndAt:   a.EndAt.Add(window),
		ExtendedAt: now,
		Revive:     a.Status == StatusEndingSoon,
	}
}

// Apply mutates the snapshot to match the row after the extension write.
func (e *Extension) Apply(a *Auction) {
	a.EndAt = e.NewEndAt
	a.ExtensionCount++
	at := e.ExtendedAt
	a.LastExtendedAt = &at
	if e.Revive {
		a.Status = StatusRunning
	}
}
