package service

import (
	"context"
	"fmt"
	"time"

	"crypto-card-service/internal/core/domain"
	"crypto-card-service/internal/core/ports"
	"crypto-card-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// DedupParams holds retry tuning for the deduplication pass.
type DedupParams struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DedupServiceImpl implements ports.DedupService. A pass works against a
// snapshot taken at its start: records minted after the snapshot are never
// considered, so a concurrent mint can never be deleted by mistake.
type DedupServiceImpl struct {
	assetRepo ports.AssetRepository
	params    DedupParams
	log       zerolog.Logger
}

// NewDedupService creates a new DedupServiceImpl.
func NewDedupService(assetRepo ports.AssetRepository, params DedupParams, log zerolog.Logger) *DedupServiceImpl {
	return &DedupServiceImpl{assetRepo: assetRepo, params: params, log: log}
}

// RunDeduplicationPass scans all minted-asset records and deletes duplicates
// per token id, keeping the record with the latest MintedAt and breaking
// ties on the highest id. Deletes run per token group with exponential
// backoff retries; a group that keeps failing is skipped so the pass always
// completes, and the report reflects what actually happened.
func (s *DedupServiceImpl) RunDeduplicationPass(ctx context.Context) (*ports.DedupReport, error) {
	assets, err := s.assetRepo.ListAll(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list minted assets: %w", err))
	}

	groups := make(map[string][]domain.MintedAsset)
	for _, a := range assets {
		groups[a.TokenID] = append(groups[a.TokenID], a)
	}

	report := &ports.DedupReport{Scanned: len(assets)}
	for tokenID, group := range groups {
		if len(group) < 2 {
			report.Retained++
			continue
		}

		survivor := group[0]
		for _, a := range group[1:] {
			if a.MintedAt.After(survivor.MintedAt) ||
				(a.MintedAt.Equal(survivor.MintedAt) && a.ID > survivor.ID) {
				survivor = a
			}
		}

		doomed := make([]int64, 0, len(group)-1)
		for _, a := range group {
			if a.ID != survivor.ID {
				doomed = append(doomed, a.ID)
			}
		}

		removed, err := s.deleteWithRetry(ctx, doomed)
		if err != nil {
			s.log.Warn().Err(err).
				Str("token_id", tokenID).
				Int("duplicates", len(doomed)).
				Msg("dedup: giving up on token group")
			report.Skipped++
			continue
		}
		report.Retained++
		report.Removed += removed
	}

	s.log.Info().
		Int("scanned", report.Scanned).
		Int("retained", report.Retained).
		Int64("removed", report.Removed).
		Int("skipped", report.Skipped).
		Msg("deduplication pass completed")

	return report, nil
}

// deleteWithRetry deletes the given ids, retrying transient failures with
// exponential backoff: base, 2x base, 4x base, and so on.
func (s *DedupServiceImpl) deleteWithRetry(ctx context.Context, ids []int64) (int64, error) {
	backoff := s.params.BaseBackoff
	var lastErr error
	for attempt := 0; attempt <= s.params.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		removed, err := s.assetRepo.DeleteByIDs(ctx, ids)
		if err == nil {
			return removed, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("after %d retries: %w", s.params.MaxRetries, lastErr)
}
