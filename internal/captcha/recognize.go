package captcha

import (
	"context"
	"log/slog"
)

// Tesseract page segmentation modes used by the default matrix. Values match
// the engine's --psm numbering.
const (
	psmSingleBlock = 6
	psmSingleLine  = 7
	psmSingleWord  = 8
	psmSingleChar  = 10
	psmRawLine     = 13
)

// DefaultEngineConfigs returns the fixed OCR configuration matrix: the
// restrictive whitelisted modes first, then the unrestricted fallbacks.
func DefaultEngineConfigs(alphabet string) []EngineConfig {
	return []EngineConfig{
		{Label: "psm8-whitelist", PageSegMode: psmSingleWord, Whitelist: alphabet},
		{Label: "psm7-whitelist", PageSegMode: psmSingleLine, Whitelist: alphabet},
		{Label: "psm6-whitelist", PageSegMode: psmSingleBlock, Whitelist: alphabet},
		{Label: "psm13-whitelist", PageSegMode: psmRawLine, Whitelist: alphabet},
		{Label: "psm10-whitelist", PageSegMode: psmSingleChar, Whitelist: alphabet},
		{Label: "psm8-free", PageSegMode: psmSingleWord},
		{Label: "psm7-free", PageSegMode: psmSingleLine},
		{Label: "psm6-free", PageSegMode: psmSingleBlock},
		{Label: "psm10-free", PageSegMode: psmSingleChar},
	}
}

// RecognizeAll runs every (variant, config) combination through the engine in
// a fixed order and collects the raw results. An engine error for a single
// combination is logged and skipped; the index still advances so tie-break
// positions stay stable across runs with the same inputs.
func RecognizeAll(ctx context.Context, eng Engine, variants []Variant, configs []EngineConfig, logger *slog.Logger) []Candidate {
	if logger == nil {
		logger = slog.Default()
	}
	candidates := make([]Candidate, 0, len(variants)*len(configs))
	idx := 0
	for _, v := range variants {
		for _, cfg := range configs {
			text, err := eng.Recognize(ctx, v.Img, cfg)
			if err != nil {
				logger.Debug("ocr combination failed",
					slog.String("strategy", v.Strategy),
					slog.String("config", cfg.Label),
					slog.Any("error", err))
				idx++
				continue
			}
			candidates = append(candidates, Candidate{
				Text:     text,
				Strategy: v.Strategy,
				Config:   cfg.Label,
				Index:    idx,
			})
			idx++
		}
	}
	return candidates
}
