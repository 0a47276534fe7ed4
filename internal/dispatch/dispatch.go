// Package dispatch validates caller arguments against an endpoint
// descriptor and turns them into an upstream-ready QueryRequest.
//
// Nothing here touches the network except region resolution, which may
// trigger the one-time load of the region code table.
package dispatch

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
)

const (
	DefaultMaxSpanMonths    = 12
	DefaultMaxRowBudget     = 5000
	DefaultDefaultRowBudget = 1000
)

// RegionResolver is the part of region.Resolver the dispatcher needs.
type RegionResolver interface {
	Resolve(ctx context.Context, input string) (model.RegionCode, error)
	Lookup(ctx context.Context, code string) (model.RegionCode, error)
}

// Params are the flat caller arguments of one data tool.
type Params struct {
	Region   string
	From     string
	To       string
	Page     int
	PageSize int
	Limit    int
	Filters  map[string]string
}

type Config struct {
	MaxSpanMonths int
	// MaxRowBudget caps the limit a caller may request.
	MaxRowBudget int
	// DefaultRowBudget applies when the caller sets no limit.
	DefaultRowBudget int
}

type Dispatcher struct {
	resolver RegionResolver
	config   Config
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithClock replaces the clock that defines the current month.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(resolver RegionResolver, cfg Config, opts ...Option) *Dispatcher {
	if cfg.MaxSpanMonths <= 0 {
		cfg.MaxSpanMonths = DefaultMaxSpanMonths
	}
	if cfg.MaxRowBudget <= 0 {
		cfg.MaxRowBudget = DefaultMaxRowBudget
	}
	if cfg.DefaultRowBudget <= 0 {
		cfg.DefaultRowBudget = DefaultDefaultRowBudget
	}
	if cfg.DefaultRowBudget > cfg.MaxRowBudget {
		cfg.DefaultRowBudget = cfg.MaxRowBudget
	}
	d := &Dispatcher{resolver: resolver, config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Route returns the descriptor of category. Unknown categories panic.
func Route(category endpoint.Category) endpoint.Descriptor {
	return category.Descriptor()
}

// ParseTool maps a caller-supplied tool name onto its category.
func ParseTool(name string) (endpoint.Category, error) {
	category, ok := endpoint.ByTool(strings.TrimSpace(name))
	if !ok {
		return 0, apperr.Validation("tool", "unknown tool %q", name)
	}
	return category, nil
}

// Validate checks params against the category's descriptor and builds the
// request. Every failure is a validation error naming the offending field,
// except region resolution failures which keep their own kinds. The region
// is resolved last since resolving a name may load the region table.
func (d *Dispatcher) Validate(ctx context.Context, category endpoint.Category, params Params) (model.QueryRequest, error) {
	desc := Route(category)
	req := model.QueryRequest{
		Params:     map[string]string{},
		PathParams: map[string]string{},
	}

	if err := d.dates(desc, params.From, params.To, &req); err != nil {
		return model.QueryRequest{}, err
	}
	if err := d.paging(desc, params, &req); err != nil {
		return model.QueryRequest{}, err
	}
	if err := filters(desc, params.Filters, &req); err != nil {
		return model.QueryRequest{}, err
	}
	if err := d.region(ctx, desc, params.Region, &req); err != nil {
		return model.QueryRequest{}, err
	}
	return req, nil
}

func (d *Dispatcher) region(ctx context.Context, desc endpoint.Descriptor, input string, req *model.QueryRequest) error {
	input = strings.TrimSpace(input)
	switch desc.Region.Mode {
	case endpoint.RegionNone:
		if input != "" {
			return apperr.Validation("region", "%s does not take a region", desc.Tool)
		}
		return nil

	case endpoint.RegionLawdCode:
		if input == "" {
			if desc.Region.Required {
				return apperr.Validation("region", "region is required")
			}
			return nil
		}
		rc, err := d.resolver.Resolve(ctx, input)
		if err != nil {
			return err
		}
		if rc.Level == model.LevelSido {
			return apperr.Validation("region", "%s is a province; a city, county or district is required", describe(rc))
		}
		req.Region = &rc
		req.Params[desc.Region.Param] = rc.LawdCode()
		return nil

	case endpoint.RegionNames:
		if input == "" {
			if desc.Region.Required {
				return apperr.Validation("region", "region is required")
			}
			return nil
		}
		rc, err := d.resolver.Resolve(ctx, input)
		if err != nil {
			return err
		}
		if rc.FullName == "" {
			if rc, err = d.resolver.Lookup(ctx, rc.Code); err != nil {
				return err
			}
		}
		sido, sigungu := regionNames(rc)
		req.Region = &rc
		req.Params[desc.Region.SidoParam] = sido
		if sigungu != "" && desc.Region.SigunguParam != "" {
			req.Params[desc.Region.SigunguParam] = sigungu
		}
		return nil
	}
	return nil
}

// regionNames splits a full name into its province and city/district parts.
// Names below the district level are dropped since the auction endpoints
// only filter down to sigungu.
func regionNames(rc model.RegionCode) (string, string) {
	tokens := strings.Fields(rc.FullName)
	if len(tokens) == 0 {
		return "", ""
	}
	end := len(tokens)
	switch rc.Level {
	case model.LevelSido:
		return tokens[0], ""
	case model.LevelEupmyeondong:
		end--
	case model.LevelRi:
		end -= 2
	}
	if end <= 1 {
		return tokens[0], ""
	}
	return tokens[0], strings.Join(tokens[1:end], " ")
}

func describe(rc model.RegionCode) string {
	if rc.FullName != "" {
		return rc.FullName
	}
	return rc.Code
}

func (d *Dispatcher) dates(desc endpoint.Descriptor, fromText, toText string, req *model.QueryRequest) error {
	fromText = strings.TrimSpace(fromText)
	toText = strings.TrimSpace(toText)

	switch desc.Date.Mode {
	case endpoint.DateNone:
		if fromText != "" || toText != "" {
			return apperr.Validation("from", "%s does not take a date range", desc.Tool)
		}
		return nil

	case endpoint.DateMonthly:
		return d.monthRange(desc, fromText, toText, req)

	case endpoint.DateOptionalMonth:
		if fromText == "" && toText == "" {
			return nil
		}
		if fromText == "" {
			fromText = toText
		}
		from, _, err := parseDate("from", fromText)
		if err != nil {
			return err
		}
		month := model.MonthOf(from)
		if toText != "" {
			to, _, err := parseDate("to", toText)
			if err != nil {
				return err
			}
			if model.MonthOf(to) != month {
				return apperr.Validation("to", "%s takes a single month", desc.Tool)
			}
		}
		if err := d.window(desc, month, month); err != nil {
			return err
		}
		req.Params[desc.Date.MonthParam] = month.Compact()
		return nil

	case endpoint.DateDailyRange:
		return d.dayRange(desc, fromText, toText, req)
	}
	return nil
}

func (d *Dispatcher) monthRange(desc endpoint.Descriptor, fromText, toText string, req *model.QueryRequest) error {
	if fromText == "" && toText == "" {
		if desc.Date.Required {
			return apperr.Validation("from", "from is required (YYYYMM or YYYY-MM)")
		}
		return nil
	}
	if fromText == "" {
		fromText = toText
	}
	if toText == "" {
		toText = fromText
	}

	fromDay, _, err := parseDate("from", fromText)
	if err != nil {
		return err
	}
	toDay, _, err := parseDate("to", toText)
	if err != nil {
		return err
	}
	from, to := model.MonthOf(fromDay), model.MonthOf(toDay)
	if to.Before(from) {
		return apperr.Validation("to", "to %s is before from %s", to, from)
	}
	if err := d.window(desc, from, to); err != nil {
		return err
	}
	if span := from.MonthsThrough(to); span > d.config.MaxSpanMonths {
		return apperr.Validation("to", "range spans %d months; at most %d are allowed", span, d.config.MaxSpanMonths)
	}

	req.From = from
	req.To = to
	return nil
}

func (d *Dispatcher) dayRange(desc endpoint.Descriptor, fromText, toText string, req *model.QueryRequest) error {
	if fromText == "" && toText == "" {
		if desc.Date.Required {
			return apperr.Validation("from", "from is required (YYYYMMDD or YYYY-MM-DD)")
		}
		return nil
	}
	if fromText == "" {
		return apperr.Validation("from", "from is required when to is given")
	}

	from, _, err := parseDate("from", fromText)
	if err != nil {
		return err
	}
	var to time.Time
	if toText == "" {
		to = d.today()
		if to.Before(from) {
			to = from
		}
	} else {
		var monthOnly bool
		to, monthOnly, err = parseDate("to", toText)
		if err != nil {
			return err
		}
		if monthOnly {
			to = to.AddDate(0, 1, -1)
		}
	}
	if to.Before(from) {
		return apperr.Validation("to", "to %s is before from %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	if earliest := desc.Date.Earliest; !earliest.IsZero() && model.MonthOf(from).Before(earliest) {
		return apperr.Validation("from", "from %s is before the earliest available month %s", from.Format(time.DateOnly), earliest)
	}
	if span := model.MonthOf(from).MonthsThrough(model.MonthOf(to)); span > d.config.MaxSpanMonths {
		return apperr.Validation("to", "range spans %d months; at most %d are allowed", span, d.config.MaxSpanMonths)
	}

	req.FromDay = from
	req.ToDay = to
	req.Params[desc.Date.FromParam] = from.Format(desc.Date.Layout)
	req.Params[desc.Date.ToParam] = to.Format(desc.Date.Layout)
	return nil
}

// window keeps month ranges inside what upstream retains: from the
// endpoint's earliest month through the current month.
func (d *Dispatcher) window(desc endpoint.Descriptor, from, to model.Month) error {
	if earliest := desc.Date.Earliest; !earliest.IsZero() && from.Before(earliest) {
		return apperr.Validation("from", "from %s is before the earliest available month %s", from, earliest)
	}
	if current := model.MonthOf(d.today()); to.After(current) {
		return apperr.Validation("to", "to %s is after the current month %s", to, current)
	}
	return nil
}

func (d *Dispatcher) today() time.Time {
	now := d.now().In(model.KST)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, model.KST)
}

var dateLayouts = []struct {
	layout    string
	monthOnly bool
}{
	{"200601", true},
	{"2006-01", true},
	{"20060102", false},
	{"2006-01-02", false},
}

// parseDate accepts YYYYMM, YYYY-MM, YYYYMMDD and YYYY-MM-DD. Month-only
// values resolve to the first day of the month.
func parseDate(field, value string) (time.Time, bool, error) {
	for _, candidate := range dateLayouts {
		if len(value) != len(candidate.layout) {
			continue
		}
		if parsed, err := time.ParseInLocation(candidate.layout, value, model.KST); err == nil {
			return parsed, candidate.monthOnly, nil
		}
	}
	return time.Time{}, false, apperr.Validation(field, "%q is not a date (use YYYYMM, YYYY-MM, YYYYMMDD or YYYY-MM-DD)", value)
}

func (d *Dispatcher) paging(desc endpoint.Descriptor, params Params, req *model.QueryRequest) error {
	switch {
	case params.Page < 0:
		return apperr.Validation("page", "page must be at least 1")
	case params.Page == 0:
		req.Page = 1
	default:
		req.Page = params.Page
	}

	switch {
	case params.PageSize < 0:
		return apperr.Validation("page_size", "page_size must be at least 1")
	case params.PageSize == 0:
		req.PageSize = desc.Paging.DefaultSize
	case params.PageSize > desc.Paging.MaxSize:
		return apperr.Validation("page_size", "page_size %d exceeds the maximum of %d for %s", params.PageSize, desc.Paging.MaxSize, desc.Tool)
	default:
		req.PageSize = params.PageSize
	}

	switch {
	case params.Limit < 0:
		return apperr.Validation("limit", "limit must be at least 1")
	case params.Limit == 0:
		req.Limit = d.config.DefaultRowBudget
	case params.Limit > d.config.MaxRowBudget:
		return apperr.Validation("limit", "limit %d exceeds the maximum of %d", params.Limit, d.config.MaxRowBudget)
	default:
		req.Limit = params.Limit
	}
	return nil
}

func filters(desc endpoint.Descriptor, values map[string]string, req *model.QueryRequest) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(values))
	for _, name := range names {
		value := strings.TrimSpace(values[name])
		filter, ok := desc.Filter(name)
		if !ok {
			return apperr.Validation(name, "%s does not accept %q", desc.Tool, name)
		}
		if value == "" {
			continue
		}
		if err := applyFilter(filter, value, req); err != nil {
			return err
		}
		seen[name] = true
	}

	for _, filter := range desc.Filters {
		if seen[filter.Name] {
			continue
		}
		if filter.Default != "" {
			if err := applyFilter(filter, filter.Default, req); err != nil {
				return err
			}
			continue
		}
		if filter.Required {
			if len(filter.Choices) > 0 {
				return apperr.Validation(filter.Name, "%s is required (one of %s)", filter.Name, strings.Join(choiceNames(filter), ", "))
			}
			return apperr.Validation(filter.Name, "%s is required", filter.Name)
		}
	}

	if req.MinAreaM2 != nil && req.MaxAreaM2 != nil && *req.MinAreaM2 > *req.MaxAreaM2 {
		return apperr.Validation("min_area", "min_area %g is greater than max_area %g", *req.MinAreaM2, *req.MaxAreaM2)
	}
	return nil
}

func applyFilter(filter endpoint.Filter, value string, req *model.QueryRequest) error {
	switch filter.Kind {
	case endpoint.FilterNumber:
		number, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil {
			return apperr.Validation(filter.Name, "%q is not a number", value)
		}
		if number < 0 {
			return apperr.Validation(filter.Name, "%s must not be negative", filter.Name)
		}
		if filter.Local {
			switch filter.Name {
			case "min_area":
				req.MinAreaM2 = &number
			case "max_area":
				req.MaxAreaM2 = &number
			}
			return nil
		}
		value = strconv.FormatFloat(number, 'f', -1, 64)

	case endpoint.FilterEnum:
		mapped, ok := lookupChoice(filter.Choices, value)
		if !ok {
			return apperr.Validation(filter.Name, "%q is not one of %s", value, strings.Join(choiceNames(filter), ", "))
		}
		value = mapped
	}

	if filter.PathParam != "" {
		req.PathParams[filter.PathParam] = value
	}
	if filter.Param != "" {
		req.Params[filter.Param] = value
	}
	return nil
}

func lookupChoice(choices map[string]string, value string) (string, bool) {
	if mapped, ok := choices[value]; ok {
		return mapped, true
	}
	for key, mapped := range choices {
		if strings.EqualFold(key, value) {
			return mapped, true
		}
	}
	return "", false
}

func choiceNames(filter endpoint.Filter) []string {
	names := make([]string, 0, len(filter.Choices))
	for name := range filter.Choices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
