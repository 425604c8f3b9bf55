package models

type ShortenRequest struct {
	URL       string        `json:"url" validate:"required,url,url_scheme"`
	Domain    string        `json:"domain,omitempty"`
	CustomKey string        `json:"customKey,omitempty" validate:"omitempty,max=64,tpkey"`
	Tier      ShortCodeTier `json:"tier,omitempty" validate:"omitempty,oneof=fast smart ai"`
	Tags      string        `json:"tags,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	Preview   bool          `json:"preview,omitempty"`
}

type UpdateDestinationRequest struct {
	MID         int64  `json:"mid" validate:"gt=0"`
	Destination string `json:"destination" validate:"required,url,url_scheme"`
}
