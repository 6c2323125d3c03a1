package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/sirupsen/logrus"
)

// FetchError reports that a trending page could not be fetched even after
// retries. It is fatal to a run: there is no partial-success path at this
// layer.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching trending page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchTrending retrieves up to count unique creator profiles from the
// trending feed. It paginates in fixed-size batches, retries each page
// independently with backoff, and deduplicates authors by ID with the first
// occurrence winning. The result can be shorter than count: the feed can run
// dry, and a page that yields no new authors ends the fetch — trending feeds
// repeat authors freely, so waiting for fresh ones could spin forever.
func (c *Client) FetchTrending(ctx context.Context, count int) ([]profiles.Profile, error) {
	if count <= 0 {
		count = c.config.BatchSize
	}

	log := c.logger.WithFields(logrus.Fields{
		"method": "FetchTrending",
		"count":  count,
	})

	seen := make(map[string]struct{}, count)
	out := make([]profiles.Profile, 0, count)

	cursor := "0"
	page := 0

	for len(out) < count {
		page++

		var resp *trendingResponse
		op := fmt.Sprintf("trending page %d", page)
		err := retry.Do(ctx, c.retryCfg, log, op, func(ctx context.Context) error {
			r, err := c.fetchPage(ctx, cursor)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, &FetchError{Page: page, Err: err}
		}

		log.WithFields(logrus.Fields{
			"page":     page,
			"items":    len(resp.ItemList),
			"has_more": resp.HasMore,
		}).Debug("Fetched trending page")

		added := 0
		for _, item := range resp.ItemList {
			p := item.profile()
			if p.ID == "" {
				log.WithField("video_id", item.ID).Debug("Skipping item without author id")
				continue
			}
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
			added++

			if len(out) >= count {
				break
			}
		}

		if !resp.HasMore || len(resp.ItemList) == 0 {
			break
		}
		// Every continued page must contribute at least one new author, so
		// the loop runs at most count productive pages plus this one.
		if added == 0 {
			log.WithField("page", page).Warn("Trending page yielded no new authors, stopping early")
			break
		}
		cursor = resp.Cursor
	}

	log.WithField("profiles", len(out)).Info("Trending fetch complete")
	return out, nil
}

// fetchPage performs a single trending request at the given cursor.
func (c *Client) fetchPage(ctx context.Context, cursor string) (*trendingResponse, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(c.config.BatchSize))
	query.Set("cursor", cursor)

	resp, err := c.makeRequest(ctx, c.config.TrendingEndpoint, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return nil, err
	}

	var page trendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode trending response: %w", err)
	}

	// The endpoint reports application-level failures with a 200 status and
	// a non-zero statusCode in the body.
	if page.StatusCode != 0 {
		return nil, fmt.Errorf("tiktok api error: code=%d message=%s", page.StatusCode, page.StatusMsg)
	}

	return &page, nil
}
