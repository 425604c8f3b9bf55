package models

import (
	"fmt"
	"strings"
)

// ShortCodeTier selects which generation strategy the ShortCode service uses.
type ShortCodeTier string

const (
	TierDefault ShortCodeTier = ""
	TierFast    ShortCodeTier = "fast"
	TierSmart   ShortCodeTier = "smart"
	TierAI      ShortCodeTier = "ai"
)

func ParseShortCodeTier(raw string) (ShortCodeTier, error) {
	switch tier := ShortCodeTier(strings.ToLower(strings.TrimSpace(raw))); tier {
	case TierDefault, TierFast, TierSmart, TierAI:
		return tier, nil
	case "default":
		return TierDefault, nil
	default:
		return TierDefault, fmt.Errorf("unknown short code tier %q", raw)
	}
}

func (t ShortCodeTier) String() string {
	if t == TierDefault {
		return "default"
	}
	return string(t)
}

type GenerateShortCodeRequest struct {
	URL    string `json:"url" validate:"required,url,url_scheme"`
	Domain string `json:"domain,omitempty" validate:"omitempty,hostname_rfc1123"`
}

type ShortCodeSource struct {
	ShortCode    string   `json:"short_code"`
	Method       string   `json:"method"`
	WasModified  bool     `json:"was_modified"`
	OriginalCode string   `json:"original_code,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

type GenerateShortCodeResponse struct {
	Message string          `json:"message"`
	Success bool            `json:"success"`
	Source  ShortCodeSource `json:"source"`
}
