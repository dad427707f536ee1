package trust

import (
	"context"
	"log"
	"time"

	"readgate/db"
	"readgate/models"

	"github.com/samber/lo"
)

// FallbackReason marks the neutral record returned when the oracle is
// unavailable.
const FallbackReason = "evaluation unavailable"

type Service struct {
	cache  db.TrustScoreCache
	oracle Oracle
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cache db.TrustScoreCache, oracle Oracle, ttl time.Duration) *Service {
	return &Service{
		cache:  cache,
		oracle: oracle,
		ttl:    ttl,
		now:    time.Now,
	}
}

// EvaluateTrustScore resolves a trust band for a source URL, cache first,
// oracle on miss. It never errors outward: trust evaluation is advisory, so
// any internal failure degrades to the neutral fallback instead of blocking
// the user's primary action.
func (s *Service) EvaluateTrustScore(ctx context.Context, sourceURL, postText string) *models.TrustScoreRecord {
	normalized := NormalizeSourceURL(sourceURL)
	log.Printf("[INFO] Starting trust evaluation for %s", normalized)

	if normalized == "" {
		return s.neutralFallback(normalized)
	}

	cached, err := s.cache.GetTrustScore(ctx, normalized)
	if err != nil {
		log.Printf("[ERROR] Trust cache lookup failed for %s: %v", normalized, err)
	} else if cached != nil {
		log.Printf("[INFO] Trust cache hit for %s (band %s)", normalized, cached.Band)
		return cached
	}

	verdict, err := s.oracle.EvaluateSource(ctx, normalized, postText)
	if err != nil {
		// The fallback is not cached: a later evaluation may succeed.
		log.Printf("[ERROR] Trust oracle failed for %s, returning neutral fallback: %v", normalized, err)
		return s.neutralFallback(normalized)
	}

	record := s.validateVerdict(normalized, verdict)

	if err := s.cache.PutTrustScore(ctx, record, s.ttl); err != nil {
		log.Printf("[ERROR] Failed to cache trust score for %s: %v", normalized, err)
	}

	log.Printf("[INFO] Trust evaluation complete for %s: band %s score %d", normalized, record.Band, record.Score)
	return record
}

// GetTrustScore is the cache-only read: (nil, nil) means not cached and the
// caller must request evaluation separately.
func (s *Service) GetTrustScore(ctx context.Context, sourceURL string) (*models.TrustScoreRecord, error) {
	normalized := NormalizeSourceURL(sourceURL)
	log.Printf("[INFO] Starting trust cache read for %s", normalized)

	record, err := s.cache.GetTrustScore(ctx, normalized)
	if err != nil {
		log.Printf("[ERROR] Trust cache read failed for %s: %v", normalized, err)
		return nil, err
	}
	return record, nil
}

// validateVerdict applies the boundary rules before any oracle field is
// trusted: clamp the score to [0,100], coerce an unknown band to MEDIO,
// truncate the reasons to 3.
func (s *Service) validateVerdict(normalizedURL string, verdict *Verdict) *models.TrustScoreRecord {
	band := models.TrustBand(verdict.Band)
	if !models.ValidTrustBand(band) {
		log.Printf("[INFO] Coercing unknown trust band %q to MEDIO", verdict.Band)
		band = models.TrustBandMedio
	}

	score := verdict.Score
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	reasons := lo.Slice(verdict.Reasons, 0, models.MaxTrustReasons)

	evaluatedAt := s.now()
	return &models.TrustScoreRecord{
		SourceURL:   normalizedURL,
		Score:       score,
		Band:        band,
		Reasons:     reasons,
		EvaluatedAt: evaluatedAt,
		ExpiresAt:   evaluatedAt.Add(s.ttl),
	}
}

func (s *Service) neutralFallback(normalizedURL string) *models.TrustScoreRecord {
	evaluatedAt := s.now()
	return &models.TrustScoreRecord{
		SourceURL:   normalizedURL,
		Score:       50,
		Band:        models.TrustBandMedio,
		Reasons:     []string{FallbackReason},
		EvaluatedAt: evaluatedAt,
		ExpiresAt:   evaluatedAt.Add(s.ttl),
	}
}
