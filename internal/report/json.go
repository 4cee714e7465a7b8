package report

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var jsonOptions = ojg.Options{Indent: 2, Sort: true}

// JSON encodes v with sorted keys and two-space indentation.
func JSON(v any) string {
	return oj.JSON(v, &jsonOptions)
}

// Query evaluates a JSONPath expression against data. A single match is
// returned as is; several matches are returned as a list.
func Query(data any, expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	results := x.Get(data)
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("jsonpath '%s' matched nothing", expr)
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// WriteJSON writes the report, or the part of it selected by query, as JSON.
func (r *Report) WriteJSON(w io.Writer, query string) error {
	return Encode(w, r.Map(), query)
}

// Encode writes v, or the part of it selected by query, as JSON. v must be
// built from generic maps and slices for the query to see into it.
func Encode(w io.Writer, v any, query string) error {
	if query != "" {
		var err error
		if v, err = Query(v, query); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, JSON(v))
	return err
}
