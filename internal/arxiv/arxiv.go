// Package arxiv fetches paper metadata from the arXiv query API to build
// corpora for discovery.
package arxiv

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// DefaultBaseURL is the public arXiv API endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// MaxPageSize is the largest page the API serves in one response.
const MaxPageSize = 2000

// Paper is one arXiv entry.
type Paper struct {
	ID         string
	Title      string
	Abstract   string
	Published  time.Time
	Authors    []string
	Categories []string
}

type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// Query selects papers. Category is an arXiv category such as cs.DB.
type Query struct {
	Category string
	Max      int
	// PageSize bounds one request; 0 uses min(Max, MaxPageSize).
	PageSize int
}

// Client talks to the arXiv API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Pause is waited between page requests, as the API asks of clients.
	Pause time.Duration
}

// NewClient returns a client for the public endpoint.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Pause:      3 * time.Second,
	}
}

// Fetch pages through the newest submissions of q.Category until q.Max papers
// are collected or the feed runs out.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Paper, error) {
	if strings.TrimSpace(q.Category) == "" {
		return nil, fmt.Errorf("%w: arxiv category is required", internalerr.ErrInvalidInput)
	}
	if q.Max <= 0 {
		return nil, fmt.Errorf("%w: max results must be positive", internalerr.ErrInvalidInput)
	}
	page := q.PageSize
	if page <= 0 {
		page = min(q.Max, MaxPageSize)
	}

	var papers []Paper
	for start := 0; len(papers) < q.Max; start += page {
		if start > 0 && c.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Pause):
			}
		}
		batch, err := c.fetchPage(ctx, q.Category, start, min(page, q.Max-len(papers)))
		if err != nil {
			return nil, err
		}
		papers = append(papers, batch...)
		if len(batch) < page {
			break
		}
	}
	return papers, nil
}

func (c *Client) fetchPage(ctx context.Context, category string, start, n int) ([]Paper, error) {
	params := url.Values{}
	params.Set("search_query", "cat:"+category)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(n))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: arxiv request: %v", internalerr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: arxiv status %d: %s", internalerr.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode arxiv feed: %v", internalerr.ErrUpstream, err)
	}
	papers := make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		papers = append(papers, e.paper())
	}
	return papers, nil
}

func (e entry) paper() Paper {
	p := Paper{
		ID:       strings.TrimSpace(e.ID),
		Title:    collapse(e.Title),
		Abstract: collapse(e.Summary),
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, collapse(a.Name))
	}
	seen := make(map[string]struct{}, len(e.Categories))
	for _, c := range e.Categories {
		if _, ok := seen[c.Term]; ok || c.Term == "" {
			continue
		}
		seen[c.Term] = struct{}{}
		p.Categories = append(p.Categories, c.Term)
	}
	return p
}

// collapse joins the hard-wrapped lines of feed text.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WriteCSV writes papers with the Title and Abstract columns the ingest loader reads.
func WriteCSV(w io.Writer, papers []Paper) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Title", "Abstract", "Published", "Authors", "Categories", "URL"}); err != nil {
		return err
	}
	for _, p := range papers {
		published := ""
		if !p.Published.IsZero() {
			published = p.Published.Format("2006-01-02")
		}
		if err := cw.Write([]string{
			p.Title,
			p.Abstract,
			published,
			strings.Join(p.Authors, "; "),
			strings.Join(p.Categories, " "),
			p.ID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
