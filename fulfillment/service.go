// Package fulfillment resolves a batch of books against the search API,
// downloads the matches and packages them into a zip archive.
package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-ebook-batch/config"
	"github.com/aluiziolira/go-ebook-batch/models"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// searchHit is a cached search outcome. Errors are never cached.
type searchHit struct {
	Found bool
	MD5   string
}

// Service implements dispatcher.Processor on top of a colly collector.
type Service struct {
	cfg       *config.Config
	baseURL   string
	apiHost   string
	collector *colly.Collector
	cache     *lru.Cache[string, searchHit]
	Metrics   *Metrics
}

// New builds a service configured from cfg.
func New(cfg *config.Config, metrics *Metrics) (*Service, error) {
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(bodyLimit(cfg.MaxDownloadBytes)),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		baseURL:   strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiHost:   parsed.Host,
		collector: collector,
		Metrics:   metrics,
	}
	if cfg.SearchCacheSize > 0 {
		cache, err := lru.New[string, searchHit](cfg.SearchCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create search cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Process searches every book, downloads the ones found and writes them to
// the configured archive. Per-book failures are reported in the results;
// only an unusable request or archive fails the whole call.
func (s *Service) Process(ctx context.Context, books []models.BookInput) (*models.ProcessingResult, error) {
	if len(books) == 0 {
		return nil, ErrNoBooks
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	slog.Info("processing books", slog.Int("books", len(books)))

	r := newRun(ctx, s, books)
	r.search()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search canceled: %w", err)
	}

	found := r.found()
	slog.Info("search finished", slog.Int("found", len(found)), slog.Int("retries", r.retry.TotalRetries()))

	result := &models.ProcessingResult{Results: r.results}
	if len(found) == 0 {
		result.Summary = notFoundSummary(r.results)
		return result, nil
	}
	if s.cfg.ArchivePath == "" {
		result.Summary = fmt.Sprintf("Found %d books; no archive path configured, skipping download.", len(found))
		return result, nil
	}

	files, downloadFailures := r.download(found)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("download canceled: %w", err)
	}

	written, writeFailures, err := writeArchive(s.cfg.ArchivePath, s.cfg.Extension, files)
	if err != nil {
		return nil, err
	}
	result.ZipPath = s.cfg.ArchivePath
	result.Summary = archiveSummary(s.cfg.ArchivePath, written, downloadFailures+writeFailures)
	return result, nil
}

// bodyLimit is one byte over the download cap so that an oversized body is
// distinguishable from one that fits exactly. Zero leaves bodies unbounded.
func bodyLimit(maxDownload int) int {
	if maxDownload <= 0 {
		return 0
	}
	return maxDownload + 1
}

func (s *Service) searchURL(book models.BookInput) string {
	query := strings.TrimSpace(strings.Join([]string{book.Title, book.Author, book.Year}, " "))
	values := url.Values{}
	values.Set("q", query)
	values.Set("ext", s.cfg.Extension)
	values.Set("sort", "mostRelevant")
	values.Set("lang", s.cfg.Language)
	values.Set("limit", strconv.Itoa(s.cfg.SearchLimit))
	return s.baseURL + "/search?" + values.Encode()
}

func (s *Service) downloadURL(md5 string) string {
	return s.baseURL + "/download?md5=" + url.QueryEscape(md5)
}

func (s *Service) apiHeaders() http.Header {
	hdr := http.Header{}
	hdr.Set("x-rapidapi-key", s.cfg.APIKey)
	hdr.Set("x-rapidapi-host", s.apiHost)
	return hdr
}

func notFoundSummary(results []models.BookResult) string {
	var b strings.Builder
	b.WriteString("No books found to download.\n\nSearch Results:\n")
	for _, result := range results {
		fmt.Fprintf(&b, "• %s by %s (%s): %s\n", result.Title, result.Author, result.Year, result.Status)
	}
	return b.String()
}

func archiveSummary(path string, written, failed int) string {
	if failed > 0 {
		return fmt.Sprintf("Package saved to %q\n\n✓ %d books downloaded successfully\n✗ %d books failed to download", path, written, failed)
	}
	return fmt.Sprintf("✓ Successfully saved %d books to %q", written, path)
}

const (
	kindSearch = "search"
	kindLinks  = "links"
	kindFile   = "file"
)

// run is the state of one Process call. Collector callbacks run
// concurrently, so everything below mu is guarded.
type run struct {
	ctx       context.Context
	svc       *Service
	collector *colly.Collector
	retry     *retryPolicy
	books     []models.BookInput

	mu       sync.Mutex
	results  []models.BookResult
	files    map[int][]byte
	failures map[int]error
}

func newRun(ctx context.Context, svc *Service, books []models.BookInput) *run {
	results := make([]models.BookResult, len(books))
	for i, book := range books {
		results[i] = models.BookResult{Title: book.Title, Author: book.Author, Year: book.Year}
	}

	r := &run{
		ctx:       ctx,
		svc:       svc,
		collector: svc.collector.Clone(),
		retry:     newRetryPolicy(svc.cfg, svc.Metrics),
		books:     books,
		results:   results,
		files:     make(map[int][]byte),
		failures:  make(map[int]error),
	}
	r.configureHandlers()
	return r
}

func (r *run) configureHandlers() {
	r.collector.OnRequest(func(req *colly.Request) {
		if r.ctx.Err() != nil {
			req.Abort()
			return
		}
		req.Ctx.Put("start", time.Now())
		r.svc.Metrics.IncRequest(req.Ctx.Get("kind"))
	})

	r.collector.OnResponse(func(resp *colly.Response) {
		if start, ok := resp.Ctx.GetAny("start").(time.Time); ok {
			r.svc.Metrics.ObserveDuration(time.Since(start))
		}
		index, ok := resp.Ctx.GetAny("index").(int)
		if !ok {
			return
		}
		switch resp.Ctx.Get("kind") {
		case kindSearch:
			r.handleSearch(index, resp.Body)
		case kindLinks:
			r.handleLinks(index, resp.Body)
		case kindFile:
			r.handleFile(index, resp.Body)
		}
	})

	r.collector.OnError(func(resp *colly.Response, err error) {
		if resp == nil || resp.Request == nil || resp.Ctx == nil {
			slog.Error("request error without context", slog.Any("error", err))
			return
		}
		index, ok := resp.Ctx.GetAny("index").(int)
		if !ok {
			return
		}
		kind := resp.Ctx.Get("kind")
		classified := classifyError(err, resp.StatusCode)
		category := errorTypeLabel(classified)
		r.svc.Metrics.IncError(category)

		slog.Error("request error",
			slog.String("kind", kind),
			slog.String("url", resp.Request.URL.String()),
			slog.String("category", category),
			slog.Any("error", err),
		)

		if retryable(classified) && r.retryRequest(kind, index, resp.Request) {
			return
		}
		r.fail(kind, index, classified)
	})
}

// retryRequest re-issues req after the backoff delay. It runs inside the
// failed request's callback, so the collector's Wait covers the retry.
func (r *run) retryRequest(kind string, index int, req *colly.Request) bool {
	delay, ok := r.retry.Next(kind + "/" + strconv.Itoa(index))
	if !ok {
		return false
	}
	if !sleep(r.ctx, delay) {
		return false
	}
	var hdr http.Header
	if req.Headers != nil {
		hdr = req.Headers.Clone()
	}
	if err := r.collector.Request(req.Method, req.URL.String(), nil, req.Ctx, hdr); err != nil {
		slog.Debug("retry request failed", slog.String("url", req.URL.String()), slog.Any("error", err))
		return false
	}
	return true
}

func (r *run) fail(kind string, index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case kindSearch:
		r.results[index].Status = string(models.StatusError)
		r.results[index].ErrorMessage = err.Error()
		r.svc.Metrics.IncBook("error")
	default:
		r.failures[index] = err
		r.svc.Metrics.IncDownload("failed")
	}
}

func (r *run) newContext(kind string, index int) *colly.Context {
	ctx := colly.NewContext()
	ctx.Put("kind", kind)
	ctx.Put("index", index)
	return ctx
}

// search resolves every book, from the cache where possible, and waits for
// all outstanding requests.
func (r *run) search() {
	for i, book := range r.books {
		key := models.Key(book.Title, book.Author, book.Year)
		if hit, ok := r.cached(key); ok {
			r.svc.Metrics.IncCacheHit()
			r.resolve(i, hit)
			continue
		}
		if err := r.collector.Request(http.MethodGet, r.svc.searchURL(book), nil, r.newContext(kindSearch, i), r.svc.apiHeaders()); err != nil {
			r.fail(kindSearch, i, err)
		}
	}
	r.collector.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.results {
		if r.results[i].Status == "" {
			r.results[i].Status = string(models.StatusError)
			r.results[i].ErrorMessage = "search did not complete"
		}
	}
}

func (r *run) cached(key string) (searchHit, bool) {
	if r.svc.cache == nil {
		return searchHit{}, false
	}
	return r.svc.cache.Get(key)
}

func (r *run) handleSearch(index int, body []byte) {
	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		r.svc.Metrics.IncError("decode")
		r.fail(kindSearch, index, ErrDecode{Err: err})
		return
	}

	hit := searchHit{}
	if match, ok := matchBook(response.Books, r.books[index]); ok {
		hit = searchHit{Found: true, MD5: match.MD5}
	}
	if r.svc.cache != nil {
		book := r.books[index]
		r.svc.cache.Add(models.Key(book.Title, book.Author, book.Year), hit)
	}
	r.resolve(index, hit)
}

func (r *run) resolve(index int, hit searchHit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit.Found {
		r.results[index].Status = string(models.StatusFound)
		r.results[index].DownloadURL = r.svc.downloadURL(hit.MD5)
		r.svc.Metrics.IncBook("found")
		return
	}
	r.results[index].Status = string(models.StatusNotFound)
	r.svc.Metrics.IncBook("not_found")
}

func (r *run) found() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var indices []int
	for i, result := range r.results {
		if result.Status == string(models.StatusFound) && result.DownloadURL != "" {
			indices = append(indices, i)
		}
	}
	return indices
}

// download fetches the link list and then the file for every index, and
// returns the files in result order plus the number of failures.
func (r *run) download(indices []int) ([]archiveFile, int) {
	for _, i := range indices {
		slog.Debug("downloading", slog.String("title", r.results[i].Title), slog.String("author", r.results[i].Author))
		if err := r.collector.Request(http.MethodGet, r.results[i].DownloadURL, nil, r.newContext(kindLinks, i), r.svc.apiHeaders()); err != nil {
			r.fail(kindLinks, i, err)
		}
	}
	r.collector.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		files  []archiveFile
		failed int
	)
	for _, i := range indices {
		data, ok := r.files[i]
		if !ok {
			failed++
			if err, known := r.failures[i]; known {
				slog.Error("failed to download book", slog.String("title", r.results[i].Title), slog.Any("error", err))
			} else {
				slog.Error("failed to download book", slog.String("title", r.results[i].Title))
			}
			continue
		}
		files = append(files, archiveFile{
			Title:  r.results[i].Title,
			Author: r.results[i].Author,
			Year:   r.results[i].Year,
			Data:   data,
		})
	}
	return files, failed
}

func (r *run) handleLinks(index int, body []byte) {
	var links []string
	if err := json.Unmarshal(body, &links); err != nil {
		r.svc.Metrics.IncError("decode")
		r.fail(kindLinks, index, ErrDecode{Err: err})
		return
	}
	if len(links) == 0 || strings.TrimSpace(links[0]) == "" {
		r.fail(kindLinks, index, ErrNoDownloadLinks)
		return
	}
	if err := r.collector.Request(http.MethodGet, strings.TrimSpace(links[0]), nil, r.newContext(kindFile, index), nil); err != nil {
		r.fail(kindFile, index, fmt.Errorf("request file: %w", err))
	}
}

func (r *run) handleFile(index int, body []byte) {
	if limit := r.svc.cfg.MaxDownloadBytes; limit > 0 && len(body) > limit {
		r.svc.Metrics.IncError("too_large")
		r.fail(kindFile, index, fmt.Errorf("%w: over %d bytes", ErrDownloadTooLarge, limit))
		return
	}
	r.mu.Lock()
	r.files[index] = body
	r.mu.Unlock()
	r.svc.Metrics.IncDownload("ok")
}
