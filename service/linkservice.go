package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/trafficportal/linkshortener/apierror"
	"github.com/trafficportal/linkshortener/models"
	"github.com/trafficportal/linkshortener/repository"
	"github.com/trafficportal/linkshortener/utils"
	"golang.org/x/sync/errgroup"
)

const (
	WarningDefaultApplied     = "DEFAULT_APPLIED"
	WarningCustomKey          = "CUSTOM_KEY"
	WarningShortCodeModified  = "SHORTCODE_MODIFIED"
	WarningPreviewUnavailable = "PREVIEW_UNAVAILABLE"
	WarningHistoryNotSaved    = "HISTORY_NOT_SAVED"

	MethodCustom = "custom"

	DefaultBatchConcurrency = 4
)

type TenantConfig struct {
	UID             int64
	DefaultDomain   string
	DomainAllowList []string
	DefaultTier     models.ShortCodeTier
	URLScheme       string
	// Preview takes a screenshot of every destination, not only when asked.
	Preview bool
}

type ShortCodeGenerator interface {
	Generate(ctx context.Context, req models.GenerateShortCodeRequest, tier models.ShortCodeTier) (*models.GenerateShortCodeResponse, error)
}

type RecordStore interface {
	CreateMaskedRecord(ctx context.Context, req models.CreateMapRequest) (*models.MapResponse, error)
	UpdateMaskedRecord(ctx context.Context, req models.UpdateMapRequest) (*models.MapResponse, error)
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
	Lookup(ctx context.Context, domain, tpKey string) (*models.MaskedRecord, error)
	KeyAvailable(ctx context.Context, domain, tpKey string) (bool, error)
}

type Previewer interface {
	Capture(ctx context.Context, req models.ScreenshotRequest) (*models.ScreenshotResponse, error)
}

type BatchItem struct {
	Request models.ShortenRequest
	Result  *models.ShortenResult
	Err     error
}

type LinkService interface {
	Shorten(ctx context.Context, req models.ShortenRequest, tenantCfg TenantConfig) (*models.ShortenResult, error)
	ShortenBatch(ctx context.Context, reqs []models.ShortenRequest, concurrency int, tenantCfg TenantConfig) []BatchItem
	UpdateDestination(ctx context.Context, req models.UpdateDestinationRequest, tenantCfg TenantConfig) (*models.MaskedRecord, error)
	Lookup(ctx context.Context, shortURL string, tenantCfg TenantConfig) (*models.LookupResult, error)
	Search(ctx context.Context, req models.SearchRequest, tenantCfg TenantConfig) (*models.SearchResult, error)
	Preview(ctx context.Context, url string) (*models.ScreenshotResponse, error)
}

type linkService struct {
	repo     repository.LinkRepository
	codes    ShortCodeGenerator
	records  RecordStore
	previews Previewer
}

// NewLinkService wires the link workflow. previews may be nil, in which case
// previews are reported as unavailable.
func NewLinkService(repo repository.LinkRepository, codes ShortCodeGenerator, records RecordStore, previews Previewer) *linkService {
	return &linkService{
		repo:     repo,
		codes:    codes,
		records:  records,
		previews: previews,
	}
}

func (s *linkService) Shorten(ctx context.Context, req models.ShortenRequest, tenantCfg TenantConfig) (*models.ShortenResult, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	warnings := []models.Warning{}

	domain, warning, err := s.resolveDomain(req.Domain, tenantCfg)
	if err != nil {
		return nil, err
	}
	if warning != nil {
		warnings = append(warnings, *warning)
	}

	tier := req.Tier
	if tier == models.TierDefault {
		tier = tenantCfg.DefaultTier
	}

	if req.CustomKey == "" {
		result, err := s.reuseExisting(ctx, domain, req.URL, tenantCfg)
		if err != nil {
			return nil, err
		}
		if result != nil {
			result.Warnings = warnings
			result.Preview = s.attachPreview(ctx, req, tenantCfg, result)
			return result, nil
		}
	}

	key, method, keyWarnings, err := s.chooseKey(ctx, req, domain, tier)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, keyWarnings...)

	createReq := models.NewCreateMapRequest(tenantCfg.UID, key, domain, req.URL)
	createReq.Tags = req.Tags
	createReq.Notes = req.Notes

	created, err := s.records.CreateMaskedRecord(ctx, createReq)
	if err != nil {
		if errors.Is(err, apierror.ErrConflict) && req.CustomKey != "" {
			return nil, fmt.Errorf("%w: %w", ErrKeyTaken, err)
		}
		return nil, err
	}

	record := *created.Source
	if record.Domain == "" {
		record.Domain = domain
	}
	if record.TPKey == "" {
		record.TPKey = key
	}
	if record.Destination == "" {
		record.Destination = req.URL
	}

	if err := s.repo.CreateLink(ctx, models.FromMaskedRecord(record, method, tier)); err != nil {
		log.Error().
			Err(err).
			Str("tp_key", record.TPKey).
			Msg("Failed to store link history")
		warnings = append(warnings, models.Warning{
			WarningCode:    WarningHistoryNotSaved,
			WarningMessage: "The link was created but could not be saved to local history.",
		})
	}

	result := &models.ShortenResult{
		ShortURL:    record.ShortURL(tenantCfg.URLScheme),
		TPKey:       record.TPKey,
		Domain:      record.Domain,
		Destination: record.Destination,
		MID:         record.MID.Int64(),
		Method:      method,
		Warnings:    warnings,
	}

	log.Debug().
		Str("short_url", result.ShortURL).
		Str("destination", result.Destination).
		Str("method", method).
		Msg("New link created")

	result.Preview = s.attachPreview(ctx, req, tenantCfg, result)
	return result, nil
}

func (s *linkService) resolveDomain(requested string, tenantCfg TenantConfig) (string, *models.Warning, error) {
	var warning *models.Warning

	raw := requested
	if raw == "" {
		if tenantCfg.DefaultDomain == "" {
			return "", nil, ErrDomainRequired
		}
		raw = tenantCfg.DefaultDomain
		warning = &models.Warning{
			WarningCode:    WarningDefaultApplied,
			WarningMessage: fmt.Sprintf("Using default domain: %s", tenantCfg.DefaultDomain),
		}
	}

	domain, err := utils.CleanHost(log.Logger, raw)
	if err != nil {
		log.Error().
			Str("domain", raw).
			Msg("Invalid domain")
		return "", nil, fmt.Errorf("invalid domain: %w", err)
	}

	if !utils.IsHostAllowed(tenantCfg.DomainAllowList, domain) {
		log.Error().
			Str("domain", domain).
			Msg("Domain not in allow list")
		return "", nil, ErrDomainNotAllowed
	}
	return domain, warning, nil
}

func (s *linkService) reuseExisting(ctx context.Context, domain, destination string, tenantCfg TenantConfig) (*models.ShortenResult, error) {
	link, err := s.repo.FindExistingLink(ctx, domain, destination, tenantCfg.UID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, nil
		}
		return nil, err
	}

	record := link.ToMaskedRecord()
	log.Debug().
		Str("tp_key", link.TPKey).
		Str("destination", destination).
		Msg("Re-using existing link")

	return &models.ShortenResult{
		ShortURL:    record.ShortURL(tenantCfg.URLScheme),
		TPKey:       link.TPKey,
		Domain:      link.Domain,
		Destination: link.Destination,
		MID:         link.MID,
		Method:      link.Method,
		Reused:      true,
	}, nil
}

func (s *linkService) chooseKey(ctx context.Context, req models.ShortenRequest, domain string, tier models.ShortCodeTier) (string, string, []models.Warning, error) {
	if req.CustomKey != "" {
		free, err := s.records.KeyAvailable(ctx, domain, req.CustomKey)
		if err != nil {
			return "", "", nil, err
		}
		if !free {
			return "", "", nil, ErrKeyTaken
		}
		return req.CustomKey, MethodCustom, []models.Warning{{
			WarningCode:    WarningCustomKey,
			WarningMessage: fmt.Sprintf("Using custom key '%s'", req.CustomKey),
		}}, nil
	}

	generated, err := s.codes.Generate(ctx, models.GenerateShortCodeRequest{URL: req.URL, Domain: domain}, tier)
	if err != nil {
		return "", "", nil, err
	}

	source := generated.Source
	method := source.Method
	if method == "" {
		method = tier.String()
	}

	var warnings []models.Warning
	if source.WasModified {
		msg := fmt.Sprintf("Short code was modified to '%s'", source.ShortCode)
		if source.OriginalCode != "" {
			msg = fmt.Sprintf("Short code '%s' was taken, using '%s'", source.OriginalCode, source.ShortCode)
		}
		warnings = append(warnings, models.Warning{
			WarningCode:    WarningShortCodeModified,
			WarningMessage: msg,
		})
	}
	return source.ShortCode, method, warnings, nil
}

func (s *linkService) attachPreview(ctx context.Context, req models.ShortenRequest, tenantCfg TenantConfig, result *models.ShortenResult) *models.ScreenshotResponse {
	if !req.Preview && !tenantCfg.Preview {
		return nil
	}

	shot, err := s.Preview(ctx, result.Destination)
	if err != nil {
		log.Warn().
			Err(err).
			Str("destination", result.Destination).
			Msg("Preview unavailable")
		result.Warnings = append(result.Warnings, models.Warning{
			WarningCode:    WarningPreviewUnavailable,
			WarningMessage: "A preview of the destination could not be captured.",
		})
		return nil
	}
	return shot
}

// ShortenBatch shortens every request with at most concurrency in flight. Items
// come back in request order, each with its own result or error.
func (s *linkService) ShortenBatch(ctx context.Context, reqs []models.ShortenRequest, concurrency int, tenantCfg TenantConfig) []BatchItem {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		i, req := i, req
		items[i].Request = req
		g.Go(func() error {
			items[i].Result, items[i].Err = s.Shorten(gctx, req, tenantCfg)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().
		Int("count", len(reqs)).
		Int("concurrency", concurrency).
		Msg("Batch shortened")
	return items
}

// UpdateDestination points an existing link at a new destination, remotely first
// and then in local history. Only links in local history can be updated.
func (s *linkService) UpdateDestination(ctx context.Context, req models.UpdateDestinationRequest, tenantCfg TenantConfig) (*models.MaskedRecord, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	link, err := s.repo.GetLinkByMID(ctx, req.MID)
	if err != nil {
		return nil, err
	}

	// Local history does not keep tags, notes or status, so the update is
	// built from the remote record to leave those untouched.
	remote, err := s.records.Lookup(ctx, link.Domain, link.TPKey)
	if err != nil {
		return nil, err
	}

	update := models.UpdateFromRecord(*remote)
	update.Destination = req.Destination
	if update.MID == 0 {
		update.MID = link.MID
	}
	if update.UID == 0 {
		update.UID = link.UID
	}
	if update.UID == 0 {
		update.UID = tenantCfg.UID
	}
	if update.Status == "" {
		update.Status = models.StatusActive
	}
	if update.Type == "" {
		update.Type = models.TypeRedirect
	}

	updated, err := s.records.UpdateMaskedRecord(ctx, update)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDestination(ctx, req.MID, req.Destination); err != nil {
		return nil, fmt.Errorf("failed to update link history: %w", err)
	}

	log.Debug().
		Int64("mid", req.MID).
		Str("destination", req.Destination).
		Msg("Destination updated")
	return updated.Source, nil
}

func (s *linkService) Lookup(ctx context.Context, shortURL string, tenantCfg TenantConfig) (*models.LookupResult, error) {
	domain, key, err := utils.SplitShortURL(shortURL)
	if err != nil {
		return nil, err
	}

	link, err := s.repo.GetLinkByKey(ctx, domain, key)
	if err == nil {
		record := link.ToMaskedRecord()
		return &models.LookupResult{
			ShortURL: record.ShortURL(tenantCfg.URLScheme),
			Record:   record,
			Local:    true,
		}, nil
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return nil, err
	}

	record, err := s.records.Lookup(ctx, domain, key)
	if err != nil {
		if errors.Is(err, apierror.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrLinkNotFound, err)
		}
		return nil, err
	}

	return &models.LookupResult{
		ShortURL: record.ShortURL(tenantCfg.URLScheme),
		Record:   *record,
	}, nil
}

func (s *linkService) Search(ctx context.Context, req models.SearchRequest, tenantCfg TenantConfig) (*models.SearchResult, error) {
	if req.UID == 0 {
		req.UID = tenantCfg.UID
	}

	resp, err := s.records.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return &resp.Source, nil
}

func (s *linkService) Preview(ctx context.Context, url string) (*models.ScreenshotResponse, error) {
	if s.previews == nil {
		return nil, ErrPreviewDisabled
	}
	return s.previews.Capture(ctx, models.NewScreenshotRequest(url))
}
