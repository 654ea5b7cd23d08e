// Package jobsource implements the job-source collaborator: keyword search
// against an Adzuna-style posting API and best-effort scraping of full
// descriptions behind redirect URLs.
package jobsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/job-scout/internal/types"
)

// Search tuning, matching the upstream API's paging behavior
const (
	resultsPerPage = 50
	maxPages       = 3
	maxDaysOld     = 15
	// maxOrKeywordsLen bounds the optional-keywords query parameter, which
	// the upstream API truncates silently past ~512 characters
	maxOrKeywordsLen = 100
)

// MatchSourceError indicates the job source could not be searched. The batch
// scheduler skips the affected user and continues the run.
type MatchSourceError struct {
	Err error
}

func (e *MatchSourceError) Error() string {
	return fmt.Sprintf("job source error: %v", e.Err)
}

func (e *MatchSourceError) Unwrap() error {
	return e.Err
}

// Client searches an Adzuna-compatible posting API
type Client struct {
	appID   string
	appKey  string
	country string
	baseURL string
	http    *http.Client
}

// NewClient creates a job source client. Country defaults to "us".
func NewClient(appID, appKey, country string) *Client {
	if country == "" {
		country = "us"
	}
	return &Client{
		appID:   appID,
		appKey:  appKey,
		country: country,
		baseURL: "https://api.adzuna.com/v1/api/jobs",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// searchResponse mirrors the API's search result page
type searchResponse struct {
	Results []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		RedirectURL string `json:"redirect_url"`
		Company     struct {
			DisplayName string `json:"display_name"`
		} `json:"company"`
	} `json:"results"`
}

// Search queries the posting API page by page. The first keyword is the
// primary query term; the remainder become the optional-match parameter,
// truncated to the upstream limit.
func (c *Client) Search(ctx context.Context, keywords []string) ([]types.JobPosting, error) {
	if c.appID == "" || c.appKey == "" {
		return nil, &MatchSourceError{Err: fmt.Errorf("job source credentials not configured")}
	}
	if len(keywords) == 0 {
		return nil, &MatchSourceError{Err: fmt.Errorf("no search keywords")}
	}

	primary := keywords[0]
	secondary := boundKeywords(keywords[1:], maxOrKeywordsLen)

	var postings []types.JobPosting
	for page := 1; page <= maxPages; page++ {
		batch, err := c.searchPage(ctx, primary, secondary, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			break // keep what earlier pages returned
		}
		postings = append(postings, batch...)
		if len(batch) < resultsPerPage {
			break
		}
	}
	return postings, nil
}

func (c *Client) searchPage(ctx context.Context, primary string, secondary []string, page int) ([]types.JobPosting, error) {
	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", fmt.Sprintf("%d", resultsPerPage))
	params.Set("what", primary)
	if len(secondary) > 0 {
		params.Set("what_or", strings.Join(secondary, " "))
	}
	params.Set("sort_by", "date")
	params.Set("max_days_old", fmt.Sprintf("%d", maxDaysOld))

	endpoint := fmt.Sprintf("%s/%s/search/%d?%s", c.baseURL, c.country, page, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &MatchSourceError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &MatchSourceError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &MatchSourceError{Err: fmt.Errorf("search returned status %d", resp.StatusCode)}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &MatchSourceError{Err: fmt.Errorf("failed to decode search response: %w", err)}
	}

	postings := make([]types.JobPosting, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		postings = append(postings, types.JobPosting{
			ExternalID:  r.ID,
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Description: r.Description,
			RedirectURL: r.RedirectURL,
		})
	}
	return postings, nil
}

// boundKeywords keeps as many secondary keywords as fit in the length budget
func boundKeywords(keywords []string, budget int) []string {
	var kept []string
	length := 0
	for _, kw := range keywords {
		if length+len(kw)+1 > budget {
			break
		}
		kept = append(kept, kw)
		length += len(kw) + 1
	}
	return kept
}
