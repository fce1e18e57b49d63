// Package query translates request query parameters into an executable
// find plan: filter criteria, sort keys, a projection, and pagination.
// A Plan is an immutable value; each transformation returns a new Plan,
// and building one performs no I/O.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultPage  = 1
	defaultLimit = 10

	// revisionField is internal bookkeeping stamped by the repository on
	// every update; it is excluded from results unless explicitly selected.
	revisionField = "revision"
)

// control keys never become filter predicates.
var controlKeys = map[string]bool{
	"page":   true,
	"limit":  true,
	"sort":   true,
	"fields": true,
}

// comparison operator tokens rewritten to their store syntax. Unrecognized
// tokens fall through to literal equality.
var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

type SortKey struct {
	Field      string
	Descending bool
}

type Plan struct {
	filter bson.M
	sort   []SortKey
	fields []string
	page   int
	limit  int
}

// Build derives a complete Plan from raw query parameters, applying every
// step in order: filter, sort, field projection, pagination.
func Build(params url.Values) Plan {
	return Plan{}.
		Filter(params).
		Sort(params.Get("sort")).
		Select(params.Get("fields")).
		Paginate(params.Get("page"), params.Get("limit"))
}

// Filter turns the non-control parameters into equality or comparison
// criteria. Values shaped like field[gte]=100 become range predicates on
// field; numeric strings are compared as numbers.
func (p Plan) Filter(params url.Values) Plan {
	filter := bson.M{}
	for key, values := range params {
		if controlKeys[key] || len(values) == 0 {
			continue
		}
		field, token, ok := splitOperator(key)
		if !ok {
			filter[key] = coerce(values[0])
			continue
		}
		op, known := operators[token]
		if !known {
			// Unknown operator token: treat the raw key as a literal field.
			filter[key] = coerce(values[0])
			continue
		}
		pred, exists := filter[field].(bson.M)
		if !exists {
			pred = bson.M{}
		}
		pred[op] = coerce(values[0])
		filter[field] = pred
	}
	next := p
	next.filter = filter
	return next
}

// Sort parses a comma-separated field list; a leading minus means
// descending. Absent input sorts by creation time, newest first. Ties fall
// back to the store's natural order, which is not deterministic.
func (p Plan) Sort(raw string) Plan {
	next := p
	if strings.TrimSpace(raw) == "" {
		next.sort = []SortKey{{Field: "createdAt", Descending: true}}
		return next
	}
	var keys []SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			keys = append(keys, SortKey{Field: part[1:], Descending: true})
		} else {
			keys = append(keys, SortKey{Field: part})
		}
	}
	if len(keys) == 0 {
		keys = []SortKey{{Field: "createdAt", Descending: true}}
	}
	next.sort = keys
	return next
}

// Select takes a comma-separated inclusion list. Absent input keeps every
// field except the internal revision marker.
func (p Plan) Select(raw string) Plan {
	next := p
	next.fields = nil
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			next.fields = append(next.fields, part)
		}
	}
	return next
}

// Paginate coerces page and limit, falling back to page 1 / limit 10 on
// anything non-numeric or non-positive.
func (p Plan) Paginate(pageStr, limitStr string) Plan {
	next := p
	next.page = positiveInt(pageStr, defaultPage)
	next.limit = positiveInt(limitStr, defaultLimit)
	return next
}

func (p Plan) Page() int  { return p.page }
func (p Plan) Limit() int { return p.limit }
func (p Plan) Skip() int64 {
	page, limit := p.page, p.limit
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return int64((page - 1) * limit)
}

// Criteria merges the parameter filter over an ambient scoping filter
// (for example "reviews of this tour"). The ambient constraint wins on
// key collisions so callers cannot widen their scope via parameters.
func (p Plan) Criteria(ambient bson.M) bson.M {
	merged := bson.M{}
	for k, v := range p.filter {
		merged[k] = v
	}
	for k, v := range ambient {
		merged[k] = v
	}
	return merged
}

// FindOptions renders the plan's sort, projection, and pagination into
// driver options.
func (p Plan) FindOptions() *options.FindOptionsBuilder {
	sortDoc := bson.D{}
	for _, key := range p.sort {
		dir := 1
		if key.Descending {
			dir = -1
		}
		sortDoc = append(sortDoc, bson.E{Key: key.Field, Value: dir})
	}

	projection := bson.M{revisionField: 0}
	if len(p.fields) > 0 {
		projection = bson.M{}
		for _, f := range p.fields {
			projection[f] = 1
		}
	}

	limit := p.limit
	if limit < 1 {
		limit = defaultLimit
	}

	return options.Find().
		SetSort(sortDoc).
		SetProjection(projection).
		SetSkip(p.Skip()).
		SetLimit(int64(limit))
}

// splitOperator recognizes field[token] parameter keys.
func splitOperator(key string) (field, token string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// coerce compares numeric strings as numbers so price[gte]=100 matches
// documents storing price as a number.
func coerce(v string) interface{} {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
