package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trafficportal/linkshortener/cache"
	"github.com/trafficportal/linkshortener/models"
)

type batchLine struct {
	URL      string `json:"url"`
	ShortURL string `json:"shortUrl,omitempty"`
	Reused   bool   `json:"reused,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newShortenCmd(current func() *app) *cobra.Command {
	var (
		req         models.ShortenRequest
		tier        string
		fromFile    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "shorten [url]",
		Short: "Create a short link for a destination URL",
		Long: `Create a short link for a destination URL.

Without --key a short code is generated. An existing link for the same
destination, domain and user is reused. With --from-file every non-empty
line of the file is shortened.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			parsed, err := models.ParseShortCodeTier(tier)
			if err != nil {
				return err
			}
			req.Tier = parsed

			if fromFile != "" {
				return runBatch(cmd, a, fromFile, req, concurrency)
			}
			if len(args) != 1 {
				return fmt.Errorf("a destination url or --from-file is required")
			}

			req.URL = args[0]
			result, err := a.links.Shorten(cmd.Context(), req, a.tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&req.Domain, "domain", "", "Short link domain (default from config)")
	cmd.Flags().StringVar(&req.CustomKey, "key", "", "Use this key instead of generating one")
	cmd.Flags().StringVar(&tier, "tier", "", "Short code tier: fast, smart or ai")
	cmd.Flags().StringVar(&req.Tags, "tags", "", "Comma separated tags")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Free text notes")
	cmd.Flags().BoolVar(&req.Preview, "preview", false, "Capture a screenshot of the destination")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "Shorten every URL listed in this file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel requests for --from-file")
	return cmd
}

func runBatch(cmd *cobra.Command, a *app, path string, template models.ShortenRequest, concurrency int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// out keeps file order; lines rejected while parsing never reach the batch.
	var (
		out    []batchLine
		reqs   []models.ShortenRequest
		slots  []int
		failed int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req := template
		req.URL = line
		req.CustomKey = ""
		if strings.HasPrefix(line, "{") {
			parsed, err := models.DecodeAndValidate[models.ShortenRequest](strings.NewReader(line))
			if err != nil {
				out = append(out, batchLine{URL: line, Error: err.Error()})
				failed++
				continue
			}
			req = mergeBatchRequest(*parsed, template)
		}

		slots = append(slots, len(out))
		out = append(out, batchLine{URL: req.URL})
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	items := a.links.ShortenBatch(cmd.Context(), reqs, concurrency, a.tenant)
	for i, item := range items {
		line := &out[slots[i]]
		if item.Err != nil {
			line.Error = item.Err.Error()
			failed++
		} else {
			line.ShortURL = item.Result.ShortURL
			line.Reused = item.Result.Reused
		}
	}

	if err := printJSON(cmd, out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d urls failed", failed, len(out))
	}
	return nil
}

// mergeBatchRequest fills the fields a JSON line left empty from the command flags.
func mergeBatchRequest(req, template models.ShortenRequest) models.ShortenRequest {
	if req.Domain == "" {
		req.Domain = template.Domain
	}
	if req.Tier == models.TierDefault {
		req.Tier = template.Tier
	}
	if req.Tags == "" {
		req.Tags = template.Tags
	}
	if req.Notes == "" {
		req.Notes = template.Notes
	}
	req.Preview = req.Preview || template.Preview
	return req
}

func newShortCodeCmd(current func() *app) *cobra.Command {
	var (
		domain string
		tier   string
	)

	cmd := &cobra.Command{
		Use:   "shortcode <url>",
		Short: "Ask the ShortCode service for a code without creating a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			parsed, err := models.ParseShortCodeTier(tier)
			if err != nil {
				return err
			}

			resp, err := a.codes.Generate(cmd.Context(), models.GenerateShortCodeRequest{URL: args[0], Domain: domain}, parsed)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp.Source)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Domain the code is meant for")
	cmd.Flags().StringVar(&tier, "tier", "", "Short code tier: fast, smart or ai")
	return cmd
}

type screenshotSummary struct {
	URL          string `json:"url"`
	Format       string `json:"format"`
	ContentType  string `json:"contentType"`
	Bytes        int    `json:"bytes"`
	Cached       bool   `json:"cached"`
	ResponseTime string `json:"responseTime"`
	CacheKey     string `json:"cacheKey,omitempty"`
	Output       string `json:"output,omitempty"`
	DataURI      string `json:"dataUri,omitempty"`
}

func newScreenshotCmd(current func() *app) *cobra.Command {
	var (
		format     string
		out        string
		noCache    bool
		jsonMode   bool
		invalidate bool
		dataURI    bool
	)
	req := models.NewScreenshotRequest("")

	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Capture a screenshot of a URL through SnapCapture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			req.URL = args[0]
			req.Format = models.ScreenshotFormat(strings.ToLower(format))

			cached := !jsonMode && !noCache
			if invalidate && !cached {
				return fmt.Errorf("--refresh only applies to cached captures")
			}
			if invalidate {
				if err := a.shots.Invalidate(cmd.Context(), req); err != nil {
					return err
				}
			}

			var (
				shot *models.ScreenshotResponse
				err  error
			)
			switch {
			case jsonMode:
				shot, err = a.snap.CaptureJSON(cmd.Context(), req)
			case noCache:
				shot, err = a.snap.Capture(cmd.Context(), req)
			default:
				shot, err = a.shots.Capture(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, shot.Image, 0o644); err != nil {
					return err
				}
			}

			summary := screenshotSummary{
				URL:          req.URL,
				Format:       string(shot.Format),
				ContentType:  shot.ContentType,
				Bytes:        shot.Size(),
				Cached:       shot.Cached,
				ResponseTime: shot.ResponseTime.String(),
				Output:       out,
			}
			if cached {
				summary.CacheKey = a.shots.Key(req)
			}
			if dataURI {
				summary.DataURI = shot.DataURI()
			}
			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().StringVar(&format, "format", string(models.FormatPNG), "Image format: png, jpeg or webp")
	cmd.Flags().IntVar(&req.Quality, "quality", models.DefaultQuality, "Image quality 1-100")
	cmd.Flags().IntVar(&req.Viewport.Width, "width", models.DefaultViewportWidth, "Viewport width")
	cmd.Flags().IntVar(&req.Viewport.Height, "height", models.DefaultViewportHeight, "Viewport height")
	cmd.Flags().BoolVar(&req.FullPage, "full-page", false, "Capture the full scrollable page")
	cmd.Flags().BoolVar(&req.Mobile, "mobile", false, "Emulate a mobile device")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the image to this file")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the local screenshot cache")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Use the JSON (base64) response mode")
	cmd.Flags().BoolVar(&invalidate, "refresh", false, "Drop any cached copy before capturing")
	cmd.Flags().BoolVar(&dataURI, "data-uri", false, "Include the image as a data: URI in the output")
	return cmd
}

func newSearchCmd(current func() *app) *cobra.Command {
	var req models.SearchRequest

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search masked records in Traffic Portal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if len(args) == 1 {
				req.Query = args[0]
			}

			result, err := a.links.Search(cmd.Context(), req, a.tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&req.TPKey, "key", "", "Only records with this key")
	cmd.Flags().StringVar(&req.Domain, "domain", "", "Only records on this domain")
	cmd.Flags().IntVar(&req.Page, "page", 1, "Result page")
	cmd.Flags().IntVar(&req.PageSize, "page-size", models.DefaultSearchPageSize, "Results per page")
	return cmd
}

func newUpdateCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <mid> <destination>",
		Short: "Point an existing short link at a new destination",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			mid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid mid %q: %w", args[0], err)
			}

			record, err := a.links.UpdateDestination(cmd.Context(), models.UpdateDestinationRequest{MID: mid, Destination: args[1]}, a.tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}
}

func newLookupCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <short-url>",
		Short: "Show the record behind a short link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			result, err := a.links.Lookup(cmd.Context(), args[0], a.tenant)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func newCacheCmd(current func() *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local screenshot cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Remove expired screenshots from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			purger, ok := a.adapter.(cache.Purger)
			if !ok {
				return fmt.Errorf("cache backend %q cannot purge", a.cfg.Cache.Backend)
			}

			deleted, err := purger.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"backend": a.cfg.Cache.Backend, "deleted": deleted})
		},
	})
	return cacheCmd
}
