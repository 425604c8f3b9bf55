package models

type Warning struct {
	WarningCode    string `json:"warningCode"`
	WarningMessage string `json:"warningMessage"`
}

type ShortenResult struct {
	ShortURL    string              `json:"shortUrl"`
	TPKey       string              `json:"tpKey"`
	Domain      string              `json:"domain"`
	Destination string              `json:"destination"`
	MID         int64               `json:"mid"`
	Method      string              `json:"method"`
	Reused      bool                `json:"reused"`
	Warnings    []Warning           `json:"warnings"`
	Preview     *ScreenshotResponse `json:"preview,omitempty"`
}

type LookupResult struct {
	ShortURL string       `json:"shortUrl"`
	Record   MaskedRecord `json:"record"`
	Local    bool         `json:"local"`
}
