package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/account-gate/internal/repository"
)

const sweepPageSize = 100

// SweepReport counts what one Sweep did.
type SweepReport struct {
	Scanned     int
	Unbanned    int
	Deactivated int
	Reactivated int
	Failed      int
}

// Sweep applies due time-based transitions to every account, the same ones
// a login would apply. It lets expired bans and finished reactivation windows
// show up in admin queues without waiting for the user to come back.
//
// Failures on individual accounts are counted and logged; Sweep only returns
// an error when it cannot list accounts at all.
func (s *AccountService) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport
	if s.lister == nil {
		return report, errors.New("service: sweep needs an account lister")
	}

	for offset := 0; ; offset += sweepPageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		lctx, cancel := s.storeCtx(ctx)
		page, err := s.lister.List(lctx, repository.AccountFilter{Limit: sweepPageSize, Offset: offset})
		cancel()
		if err != nil {
			return report, fmt.Errorf("service: listing accounts: %w", err)
		}

		for i := range page {
			a := &page[i]
			report.Scanned++

			t := pendingTransition(a, now, s.policy)
			if t.kind == noTransition {
				continue
			}
			if _, err := s.applyTransition(ctx, a, now); err != nil {
				report.Failed++
				continue
			}
			switch t.kind {
			case transitionAutoUnban:
				report.Unbanned++
			case transitionDeactivate:
				report.Deactivated++
			case transitionAutoReactivate:
				report.Reactivated++
			}
		}

		if len(page) < sweepPageSize {
			break
		}
	}

	if report.Unbanned+report.Deactivated+report.Reactivated+report.Failed > 0 {
		s.logger.Info("sweep finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("unbanned", report.Unbanned),
			slog.Int("deactivated", report.Deactivated),
			slog.Int("reactivated", report.Reactivated),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}
