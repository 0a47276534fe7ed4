// Package tools exposes the engine as named tools taking flat parameter
// objects, the shape language-model agents and the HTTP adapter call with.
package tools

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"realestate/internal/apperr"
	"realestate/internal/dispatch"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/service"
)

// Engine is the part of service.Engine the registry calls.
type Engine interface {
	Query(ctx context.Context, category endpoint.Category, params dispatch.Params) (service.Result, error)
	SearchRegion(ctx context.Context, query string, limit int) ([]model.RegionCode, error)
}

type handler func(ctx context.Context, args Args) (any, error)

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`

	allowed map[string]bool
	run     handler
}

// Result is the envelope of one invocation. Exactly one of Data and Error
// is set.
type Result struct {
	RequestID string          `json:"request_id"`
	Tool      string          `json:"tool"`
	Data      any             `json:"data,omitempty"`
	Error     *apperr.Payload `json:"error,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

type Registry struct {
	engine Engine
	tools  map[string]Tool
	newID  func() string
}

type Option func(*Registry)

// WithIDGenerator replaces the uuid request IDs, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

func NewRegistry(engine Engine, opts ...Option) *Registry {
	r := &Registry{
		engine: engine,
		tools:  make(map[string]Tool),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, category := range endpoint.All() {
		r.add(r.dataTool(category.Descriptor()))
	}
	r.add(r.searchRegionTool())
	r.add(loanTool())
	r.add(growthTool())
	r.add(cashflowTool())
	return r
}

func (r *Registry) add(tool Tool) {
	tool.allowed = make(map[string]bool)
	if props, ok := tool.InputSchema["properties"].(map[string]any); ok {
		for name := range props {
			tool.allowed[name] = true
		}
	}
	r.tools[tool.Name] = tool
}

// List returns every tool sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute runs one tool. The returned Result always carries the request ID;
// on failure its Error holds the boundary payload and the error is returned
// as well so adapters can pick a status.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	result := Result{RequestID: r.newID(), Tool: name}
	logger := zerolog.Ctx(ctx).With().Str("request_id", result.RequestID).Str("tool", name).Logger()
	ctx = logger.WithContext(ctx)
	started := time.Now()

	data, err := r.execute(ctx, name, Args(args))
	result.ElapsedMS = time.Since(started).Milliseconds()
	if err != nil {
		payload := apperr.ToPayload(err)
		result.Error = &payload
		logger.Info().Str("kind", string(payload.Kind)).Int64("elapsed_ms", result.ElapsedMS).Msg("tool failed")
		return result, err
	}
	result.Data = data
	logger.Info().Int64("elapsed_ms", result.ElapsedMS).Msg("tool completed")
	return result, nil
}

func (r *Registry) execute(ctx context.Context, name string, args Args) (any, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, apperr.New(apperr.KindUnknownCategory, "unknown tool %q", name)
	}
	if err := args.check(tool.allowed); err != nil {
		return nil, err
	}
	return tool.run(ctx, args)
}

func (r *Registry) dataTool(desc endpoint.Descriptor) Tool {
	props := map[string]any{
		"page":      schemaProp("integer", "1-based first page; defaults to 1"),
		"page_size": schemaProp("integer", "rows per upstream page"),
		"limit":     schemaProp("integer", "maximum records returned across pages"),
	}
	var required []string
	switch desc.Region.Mode {
	case endpoint.RegionLawdCode:
		props["region"] = schemaProp("string", "region name such as 강남구 or a 5/10-digit legal-dong code")
		required = append(required, "region")
	case endpoint.RegionNames:
		props["region"] = schemaProp("string", "optional region name or legal-dong code")
	}
	switch desc.Date.Mode {
	case endpoint.DateMonthly:
		props["from"] = schemaProp("string", "first month, YYYYMM or YYYY-MM")
		props["to"] = schemaProp("string", "last month, YYYYMM or YYYY-MM; defaults to from")
		required = append(required, "from")
	case endpoint.DateOptionalMonth:
		props["from"] = schemaProp("string", "statistics month, YYYYMM or YYYY-MM")
	case endpoint.DateDailyRange:
		props["from"] = schemaProp("string", "first day, YYYY-MM-DD or YYYYMM")
		props["to"] = schemaProp("string", "last day, YYYY-MM-DD or YYYYMM; defaults to today")
	}
	for _, filter := range desc.Filters {
		prop := schemaProp("string", filter.Description)
		if filter.Kind == endpoint.FilterNumber {
			prop = schemaProp("number", filter.Description)
		}
		if filter.Kind == endpoint.FilterEnum {
			prop["enum"] = choiceNames(filter.Choices)
		}
		if filter.Default != "" {
			prop["default"] = filter.Default
		}
		props[filter.Name] = prop
		if filter.Required && filter.Default == "" {
			required = append(required, filter.Name)
		}
	}

	category := desc.Category
	filters := desc.Filters
	return Tool{
		Name:        desc.Tool,
		Description: desc.Description,
		InputSchema: objectSchema(props, required),
		run: func(ctx context.Context, args Args) (any, error) {
			params, err := queryParams(args, filters)
			if err != nil {
				return nil, err
			}
			return r.engine.Query(ctx, category, params)
		},
	}
}

func queryParams(args Args, filters []endpoint.Filter) (dispatch.Params, error) {
	var params dispatch.Params
	var err error
	if params.Region, err = args.String("region"); err != nil {
		return params, err
	}
	if params.From, err = args.String("from"); err != nil {
		return params, err
	}
	if params.To, err = args.String("to"); err != nil {
		return params, err
	}
	if params.Page, err = args.Int("page"); err != nil {
		return params, err
	}
	if params.PageSize, err = args.Int("page_size"); err != nil {
		return params, err
	}
	if params.Limit, err = args.Int("limit"); err != nil {
		return params, err
	}
	for _, filter := range filters {
		if !args.has(filter.Name) {
			continue
		}
		value, err := args.String(filter.Name)
		if err != nil {
			return params, err
		}
		if params.Filters == nil {
			params.Filters = make(map[string]string)
		}
		params.Filters[filter.Name] = value
	}
	return params, nil
}

// RegionMatches is the search_region_code payload.
type RegionMatches struct {
	Query      string             `json:"query"`
	Candidates []model.RegionCode `json:"candidates"`
	Count      int                `json:"count"`
}

func (r *Registry) searchRegionTool() Tool {
	return Tool{
		Name:        "search_region_code",
		Description: "search legal-dong region codes by name; returns every candidate without picking one",
		InputSchema: objectSchema(map[string]any{
			"query": schemaProp("string", "region name such as 강남구, 서울 중구 or a legal-dong code"),
			"limit": schemaProp("integer", "maximum candidates; defaults to 20"),
		}, []string{"query"}),
		run: func(ctx context.Context, args Args) (any, error) {
			query, err := args.String("query")
			if err != nil {
				return nil, err
			}
			if query == "" {
				return nil, apperr.Validation("query", "query is required")
			}
			limit, err := args.Int("limit")
			if err != nil {
				return nil, err
			}
			if limit < 0 {
				return nil, apperr.Validation("limit", "limit must not be negative")
			}
			candidates, err := r.engine.SearchRegion(ctx, query, limit)
			if err != nil {
				return nil, err
			}
			if candidates == nil {
				candidates = []model.RegionCode{}
			}
			return RegionMatches{Query: query, Candidates: candidates, Count: len(candidates)}, nil
		},
	}
}

func schemaProp(kind, description string) map[string]any {
	prop := map[string]any{"type": kind}
	if description != "" {
		prop["description"] = description
	}
	return prop
}

func objectSchema(props map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func choiceNames(choices map[string]string) []string {
	names := make([]string, 0, len(choices))
	for name := range choices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
