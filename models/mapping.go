package models

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	TypeRedirect = "redirect"
	TypeMasked   = "masked"

	DefaultSearchPageSize = 20
)

var recordTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

type CreateMapRequest struct {
	UID         int64  `json:"uid"`
	TPKey       string `json:"tpKey" validate:"required,max=64,tpkey"`
	Domain      string `json:"domain" validate:"required,hostname_rfc1123"`
	Destination string `json:"destination" validate:"required,url,url_scheme"`
	Status      string `json:"status" validate:"oneof=active inactive"`
	Type        string `json:"type" validate:"oneof=redirect masked"`
	IsSet       int    `json:"is_set" validate:"oneof=0 1"`
	Tags        string `json:"tags,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func NewCreateMapRequest(uid int64, tpKey, domain, destination string) CreateMapRequest {
	return CreateMapRequest{
		UID:         uid,
		TPKey:       tpKey,
		Domain:      domain,
		Destination: destination,
		Status:      StatusActive,
		Type:        TypeRedirect,
	}
}

type UpdateMapRequest struct {
	MID         int64  `json:"mid" validate:"gt=0"`
	UID         int64  `json:"uid"`
	TPKey       string `json:"tpKey" validate:"required,max=64,tpkey"`
	Domain      string `json:"domain" validate:"required,hostname_rfc1123"`
	Destination string `json:"destination" validate:"required,url,url_scheme"`
	Status      string `json:"status" validate:"oneof=active inactive"`
	Type        string `json:"type" validate:"oneof=redirect masked"`
	IsSet       int    `json:"is_set" validate:"oneof=0 1"`
	Tags        string `json:"tags,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// UpdateFromRecord starts an update from the current state of a record.
func UpdateFromRecord(r MaskedRecord) UpdateMapRequest {
	return UpdateMapRequest{
		MID:         r.MID.Int64(),
		UID:         r.UID.Int64(),
		TPKey:       r.TPKey,
		Domain:      r.Domain,
		Destination: r.Destination,
		Status:      r.Status,
		Type:        r.Type,
		IsSet:       int(r.IsSet),
		Tags:        r.Tags,
		Notes:       r.Notes,
	}
}

type DailyUsage struct {
	Date    string  `json:"date"`
	Total   FlexInt `json:"total"`
	QR      FlexInt `json:"qr"`
	Regular FlexInt `json:"regular"`
}

type UsageStats struct {
	Total   FlexInt      `json:"total"`
	Unique  FlexInt      `json:"unique"`
	QR      FlexInt      `json:"qr"`
	Regular FlexInt      `json:"regular"`
	Daily   []DailyUsage `json:"daily,omitempty"`
}

type MaskedRecord struct {
	MID         FlexInt     `json:"mid"`
	UID         FlexInt     `json:"uid"`
	TPKey       string      `json:"tpKey"`
	Domain      string      `json:"domain"`
	Destination string      `json:"destination"`
	Status      string      `json:"status"`
	Type        string      `json:"type"`
	IsSet       FlexInt     `json:"is_set"`
	Tags        string      `json:"tags,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   string      `json:"created_at,omitempty"`
	UpdatedAt   string      `json:"updated_at,omitempty"`
	Usage       *UsageStats `json:"usage,omitempty"`
}

func (r MaskedRecord) ShortURL(scheme string) string {
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, r.Domain, r.TPKey)
}

func (r MaskedRecord) Created() (time.Time, error) {
	return parseRecordTime(r.CreatedAt)
}

func (r MaskedRecord) Updated() (time.Time, error) {
	return parseRecordTime(r.UpdatedAt)
}

func parseRecordTime(raw string) (time.Time, error) {
	for _, layout := range recordTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

type MapResponse struct {
	Message string        `json:"message"`
	Success bool          `json:"success"`
	Source  *MaskedRecord `json:"source,omitempty"`
}

type SearchRequest struct {
	UID      int64  `json:"uid"`
	TPKey    string `json:"tpKey,omitempty" validate:"omitempty,max=64,tpkey"`
	Domain   string `json:"domain,omitempty" validate:"omitempty,hostname_rfc1123"`
	Query    string `json:"q,omitempty"`
	Page     int    `json:"page" validate:"min=0"`
	PageSize int    `json:"page_size" validate:"min=0,max=100"`
}

// Values renders the request as query parameters. Zero paging fields fall back to
// page 1 and DefaultSearchPageSize.
func (r SearchRequest) Values() url.Values {
	v := url.Values{}
	if r.UID != 0 {
		v.Set("uid", strconv.FormatInt(r.UID, 10))
	}
	if r.TPKey != "" {
		v.Set("tpKey", r.TPKey)
	}
	if r.Domain != "" {
		v.Set("domain", r.Domain)
	}
	if r.Query != "" {
		v.Set("q", r.Query)
	}

	page := r.Page
	if page <= 0 {
		page = 1
	}
	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = DefaultSearchPageSize
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(pageSize))
	return v
}

type SearchResult struct {
	Records  []MaskedRecord `json:"records"`
	Total    FlexInt        `json:"total"`
	Page     FlexInt        `json:"page"`
	PageSize FlexInt        `json:"page_size"`
}

type SearchResponse struct {
	Message string       `json:"message"`
	Success bool         `json:"success"`
	Source  SearchResult `json:"source"`
}
