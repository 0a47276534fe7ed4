package portal

import (
	"context"

	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/providers"
)

// Pager walks the pages of one query lazily. Months are visited in ascending
// order and pages within a month one at a time. The requested page applies to
// the first month only; later months start at page 1. A Pager is not
// restartable.
type Pager struct {
	client   *Client
	desc     endpoint.Descriptor
	req      model.QueryRequest
	months   []model.Month
	pageSize int
	monthIdx int
	pageNo   int
	rows     int
	done     bool
	page     providers.Page
	err      error
}

func (c *Client) Pages(desc endpoint.Descriptor, req model.QueryRequest) *Pager {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = desc.Paging.DefaultSize
	}
	startPage := req.Page
	if startPage < 1 {
		startPage = 1
	}
	req.Page = startPage
	return &Pager{
		client:   c,
		desc:     desc,
		req:      req,
		months:   req.Months(),
		pageSize: pageSize,
		pageNo:   startPage,
	}
}

// Next fetches the next page. It returns false when the query is exhausted,
// the row budget is met or a fetch failed; Err distinguishes the last case.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done || p.monthIdx >= len(p.months) {
		return false
	}

	month := p.months[p.monthIdx]
	page, err := p.client.fetchPage(ctx, p.desc, p.req, month, p.pageNo, p.pageSize)
	if err != nil {
		p.err = err
		p.done = true
		return false
	}

	p.page = page
	p.rows += len(page.Rows)
	switch {
	case p.req.Limit > 0 && p.rows >= p.req.Limit:
		p.done = true
	case p.hasMore(page):
		p.pageNo++
	default:
		p.monthIdx++
		p.pageNo = 1
	}
	return true
}

func (p *Pager) Page() providers.Page {
	return p.page
}

func (p *Pager) Err() error {
	return p.err
}

func (p *Pager) hasMore(page providers.Page) bool {
	if len(page.Rows) == 0 {
		return false
	}
	if p.desc.Paging.Mode == endpoint.PagingTotalCount && page.TotalCount >= 0 {
		return page.Number*p.pageSize < page.TotalCount
	}
	return len(page.Rows) >= p.pageSize
}

// FetchAll drains a pager. Callers see either every page or an error.
func (c *Client) FetchAll(ctx context.Context, desc endpoint.Descriptor, req model.QueryRequest) ([]providers.Page, error) {
	pager := c.Pages(desc, req)
	pages := make([]providers.Page, 0, 1)
	for pager.Next(ctx) {
		pages = append(pages, pager.Page())
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}
