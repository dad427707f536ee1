package models

import "time"

type TrustBand string

const (
	TrustBandAlto  TrustBand = "ALTO"
	TrustBandMedio TrustBand = "MEDIO"
	TrustBandBasso TrustBand = "BASSO"
)

// ValidTrustBand reports whether b is one of the three enumerated bands.
func ValidTrustBand(b TrustBand) bool {
	return b == TrustBandAlto || b == TrustBandMedio || b == TrustBandBasso
}

const MaxTrustReasons = 3

// TrustScoreRecord is the cached trust evaluation for a normalized source
// URL. Overwritten wholesale on refresh, never partially mutated.
type TrustScoreRecord struct {
	SourceURL   string    `json:"source_url"`
	Score       int       `json:"score"`
	Band        TrustBand `json:"band"`
	Reasons     []string  `json:"reasons"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type EvaluateTrustScoreRequest struct {
	SourceURL string `json:"source_url"`
	PostText  string `json:"post_text,omitempty"`
}
