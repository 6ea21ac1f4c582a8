// Package syncer replays the offline event queue against the API once
// connectivity returns.
package syncer

import (
	"context"
	"errors"
	"log"

	"shiftledger/internal/offline/domain"
	"shiftledger/internal/offline/store"
)

// Sender delivers one queued event to the server. It distinguishes the
// dispositions with sentinel errors: domain.ErrConflict when the server
// rejects the event as conflicting with recorded state, domain.ErrRejected
// when the server rejects it as invalid, domain.ErrUnreachable when the
// server cannot be reached at all.
type Sender interface {
	Send(ctx context.Context, e *domain.Event) error
}

// Report counts what one sync pass did with the queue.
type Report struct {
	Synced     int
	Conflicted int
	Abandoned  int
	// Failed events stay pending with an incremented retry count.
	Failed int
}

// Syncer drains the queue strictly in capture order. One failing event does
// not stop the pass; a clock-out must still go through after its clock-in
// conflicted.
type Syncer struct {
	store  store.Store
	sender Sender
}

// New returns a syncer over the given store and sender.
func New(s store.Store, sender Sender) *Syncer {
	return &Syncer{store: s, sender: sender}
}

// SyncAll replays every pending event once, oldest first. Synced events leave
// the queue. Conflicted and abandoned events are kept with a terminal status
// so the user can see what happened; Pending never returns them again.
// An unreachable server ends the pass immediately with the queue untouched:
// being offline is not a retryable failure per event.
func (s *Syncer) SyncAll(ctx context.Context) (Report, error) {
	var rep Report

	pending, err := s.store.Pending(ctx)
	if err != nil {
		return rep, err
	}

	for _, event := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		if event.Exhausted() {
			event.Status = domain.StatusAbandoned
			if err := s.store.Update(ctx, event); err != nil {
				return rep, err
			}
			rep.Abandoned++
			continue
		}

		err := s.sender.Send(ctx, event)
		switch {
		case err == nil:
			if err := s.store.Remove(ctx, event.ID); err != nil {
				return rep, err
			}
			rep.Synced++
		case errors.Is(err, domain.ErrUnreachable):
			log.Printf("offline: server unreachable, stopping pass: %v", err)
			return rep, nil
		case errors.Is(err, domain.ErrConflict):
			event.Status = domain.StatusConflicted
			event.LastError = err.Error()
			if err := s.store.Update(ctx, event); err != nil {
				return rep, err
			}
			rep.Conflicted++
		case errors.Is(err, domain.ErrRejected):
			// Validation rejections can never succeed; no retry.
			event.Status = domain.StatusAbandoned
			event.LastError = err.Error()
			if err := s.store.Update(ctx, event); err != nil {
				return rep, err
			}
			rep.Abandoned++
		default:
			log.Printf("offline: sync of event %s failed: %v", event.ID, err)
			event.RetryCount++
			event.LastError = err.Error()
			if event.Exhausted() {
				event.Status = domain.StatusAbandoned
				rep.Abandoned++
			} else {
				rep.Failed++
			}
			if err := s.store.Update(ctx, event); err != nil {
				return rep, err
			}
		}
	}

	return rep, nil
}
