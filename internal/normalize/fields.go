package normalize

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/rawtree"
)

var (
	errMissing = errors.New("missing")
	errInvalid = errors.New("invalid")
)

// KST is the zone every upstream date is expressed in.
var KST = model.KST

var (
	manwon   = decimal.NewFromInt(10000)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// row reads canonical fields out of one upstream row through the
// descriptor's field-mapping table.
type row struct {
	node   rawtree.Node
	fields map[endpoint.Field]endpoint.FieldSpec
}

func (r row) raw(field endpoint.Field) (string, endpoint.FieldSpec, bool) {
	spec, ok := r.fields[field]
	if !ok {
		return "", spec, false
	}
	node, ok := r.node.First(spec.Keys...)
	if !ok {
		return "", spec, false
	}
	text, ok := node.Text()
	if !ok {
		return "", spec, false
	}
	return text, spec, true
}

func (r row) text(field endpoint.Field) (string, error) {
	text, _, ok := r.raw(field)
	if !ok {
		return "", errMissing
	}
	return text, nil
}

// must returns a field the required check has already seen.
func (r row) must(field endpoint.Field) string {
	text, _ := r.text(field)
	return text
}

// missing reports the first of fields the row does not carry.
func (r row) missing(fields []endpoint.Field) (endpoint.Field, bool) {
	for _, field := range fields {
		if _, _, ok := r.raw(field); !ok {
			return field, true
		}
	}
	return "", false
}

// requiredFields lists the fields marked required, in name order so drop
// reasons do not depend on map iteration.
func requiredFields(fields map[endpoint.Field]endpoint.FieldSpec) []endpoint.Field {
	var out []endpoint.Field
	for field, spec := range fields {
		if spec.Required {
			out = append(out, field)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r row) optText(field endpoint.Field) *string {
	text, err := r.text(field)
	if err != nil {
		return nil
	}
	return &text
}

// won parses an amount and converts it to won. Thousands separators and
// surrounding blanks are tolerated.
func (r row) won(field endpoint.Field) (int64, error) {
	text, spec, ok := r.raw(field)
	if !ok {
		return 0, errMissing
	}
	amount, err := decimal.NewFromString(cleanNumber(text))
	if err != nil {
		return 0, errInvalid
	}
	if spec.Unit == endpoint.UnitManwon {
		amount = amount.Mul(manwon)
	}
	amount = amount.Round(0)
	if amount.GreaterThan(maxInt64) || amount.LessThan(minInt64) {
		return 0, errInvalid
	}
	return amount.IntPart(), nil
}

func (r row) optWon(field endpoint.Field) *int64 {
	value, err := r.won(field)
	if err != nil {
		return nil
	}
	return &value
}

func (r row) float(field endpoint.Field) (float64, error) {
	text, _, ok := r.raw(field)
	if !ok {
		return 0, errMissing
	}
	value, err := strconv.ParseFloat(cleanNumber(text), 64)
	if err != nil {
		return 0, errInvalid
	}
	return value, nil
}

func (r row) optFloat(field endpoint.Field) *float64 {
	value, err := r.float(field)
	if err != nil {
		return nil
	}
	return &value
}

func (r row) integer(field endpoint.Field) (int, error) {
	text, _, ok := r.raw(field)
	if !ok {
		return 0, errMissing
	}
	value, err := strconv.Atoi(cleanNumber(text))
	if err != nil {
		return 0, errInvalid
	}
	return value, nil
}

func (r row) optInt(field endpoint.Field) *int {
	value, err := r.integer(field)
	if err != nil {
		return nil
	}
	return &value
}

func (r row) optInt64(field endpoint.Field) *int64 {
	text, _, ok := r.raw(field)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(cleanNumber(text), 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func (r row) date(field endpoint.Field) (time.Time, error) {
	text, spec, ok := r.raw(field)
	if !ok {
		return time.Time{}, errMissing
	}
	for _, layout := range spec.Layouts {
		if parsed, err := time.ParseInLocation(layout, text, KST); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errInvalid
}

func (r row) optDate(field endpoint.Field) *time.Time {
	value, err := r.date(field)
	if err != nil {
		return nil
	}
	return &value
}

func cleanNumber(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, ",", "")
	return strings.ReplaceAll(text, " ", "")
}

// reason builds the drop-reason key for a failed mandatory field.
func reason(err error, field endpoint.Field) string {
	return err.Error() + " " + string(field)
}
