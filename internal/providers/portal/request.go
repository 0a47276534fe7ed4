package portal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/providers"
	"realestate/internal/rawtree"
)

const maxErrorSnippet = 200

// fetchPage issues one page request, retrying transient and rate-limited
// outcomes with exponential backoff.
func (c *Client) fetchPage(ctx context.Context, desc endpoint.Descriptor, req model.QueryRequest, month model.Month, pageNo, pageSize int) (providers.Page, error) {
	logger := zerolog.Ctx(ctx)

	cred, err := c.credential(desc)
	if err != nil {
		return providers.Page{}, err
	}
	target := c.buildURL(desc, req, month, pageNo, pageSize, cred)

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		page, retryAfter, err := c.attempt(ctx, desc, target, cred)
		if err == nil {
			page.Month = month
			page.Number = pageNo
			logger.Debug().
				Str("tool", desc.Tool).
				Str("month", month.Compact()).
				Int("page", pageNo).
				Int("rows", len(page.Rows)).
				Int("total_count", page.TotalCount).
				Msg("fetched page")
			return page, nil
		}
		if ctxErr := contextError(ctx); ctxErr != nil {
			return providers.Page{}, ctxErr
		}
		if !apperr.Retryable(apperr.KindOf(err)) {
			return providers.Page{}, err
		}
		lastErr = err
		if attempt == c.config.MaxAttempts {
			break
		}

		delay := c.backoff(attempt, retryAfter)
		logger.Warn().
			Err(err).
			Str("tool", desc.Tool).
			Int("attempt", attempt).
			Int("max_attempts", c.config.MaxAttempts).
			Dur("retry_in", delay).
			Msg("upstream call failed, retrying")
		if err := sleepWithContext(ctx, delay); err != nil {
			return providers.Page{}, contextError(ctx)
		}
	}

	return providers.Page{}, apperr.Wrap(apperr.KindUpstreamUnavailable, lastErr,
		"%s: gave up after %d attempts", desc.Tool, c.config.MaxAttempts)
}

func (c *Client) attempt(ctx context.Context, desc endpoint.Descriptor, target string, cred credential) (providers.Page, time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return providers.Page{}, 0, ctxErr
		}
		return providers.Page{}, 0, apperr.Wrap(apperr.KindTimedOut, err, "rate limit wait exceeds deadline")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return providers.Page{}, 0, apperr.Wrap(apperr.KindPermanent, err, "build request")
	}
	if desc.Format == rawtree.FormatXML {
		httpReq.Header.Set("Accept", "application/xml")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if cred.header {
		httpReq.Header.Set("Authorization", cred.key)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return providers.Page{}, 0, ctxErr
		}
		return providers.Page{}, 0, apperr.Wrap(apperr.KindTransient, err, "%s: request failed", desc.Tool)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Page{}, 0, apperr.Wrap(apperr.KindTransient, err, "%s: read body", desc.Tool)
	}

	if err := classifyStatus(desc, resp, body); err != nil {
		return providers.Page{}, parseRetryAfter(resp), err
	}

	root, err := rawtree.Decode(body, desc.Format)
	if err != nil {
		return providers.Page{}, 0, apperr.Wrap(apperr.KindTransient, err, "%s: unparsable response", desc.Tool)
	}
	if err := classifyPayload(desc, root); err != nil {
		return providers.Page{}, 0, err
	}

	page := providers.Page{
		TotalCount: -1,
		Root:       root,
		Rows:       providers.ExtractRows(root, desc.Paging.ItemsPaths),
	}
	if total, ok := providers.TotalCount(root, desc.Paging.TotalCountPaths); ok {
		page.TotalCount = total
	}
	return page, 0, nil
}

// backoff doubles the base delay per attempt. A Retry-After hint longer than
// the computed delay wins; both are capped at MaxDelay.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.config.BaseDelay
	for i := 1; i < attempt && delay < c.config.MaxDelay; i++ {
		delay *= 2
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}
	return delay
}

func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimedOut, err, "operation deadline exceeded")
	default:
		return apperr.Wrap(apperr.KindCanceled, err, "operation canceled")
	}
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := time.Parse(http.TimeFormat, value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	text := []rune(strings.TrimSpace(string(body)))
	if len(text) > maxErrorSnippet {
		return string(text[:maxErrorSnippet]) + "..."
	}
	return string(text)
}

func statusError(kind apperr.Kind, desc endpoint.Descriptor, resp *http.Response, body []byte) error {
	return apperr.New(kind, "%s: upstream returned %s: %s", desc.Tool, resp.Status, snippet(body))
}
