// Package interpret turns free text into a query intent, either by parsing
// assistant JSON or by matching known phrasings locally.
package interpret

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

var (
	// ErrIntentUnparseable means the text held no usable intent object.
	ErrIntentUnparseable = errors.New("intent could not be interpreted")
	// ErrNoMatch means no local phrasing matched the question.
	ErrNoMatch = errors.New("question did not match a known phrasing")
)

// ExtractJSON returns the first well-formed JSON object embedded in text.
// Surrounding prose and code fences are ignored.
func ExtractJSON(text string) (string, error) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return string(raw), nil
		}

		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", fmt.Errorf("%w: no JSON object found", ErrIntentUnparseable)
}

// flexInt accepts 3, "3", 3.0 and null.
type flexInt struct {
	set   bool
	value int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		f.set, f.value = true, n
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		f.set, f.value = true, int(v)
	}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.set {
		return nil
	}
	return query.IntPtr(f.value)
}

// flexString accepts strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type wireFilters struct {
	Month    flexInt    `json:"month"`
	Year     flexInt    `json:"year"`
	Seller   flexString `json:"seller"`
	Brand    flexString `json:"brand"`
	Category flexString `json:"category"`
	Client   flexString `json:"client"`
}

type wireSort struct {
	By    flexString `json:"by"`
	Order flexString `json:"order"`
}

type wireIntent struct {
	Metric  *flexString  `json:"metric"`
	GroupBy flexString   `json:"group_by"`
	Filters *wireFilters `json:"filters"`
	Sort    *wireSort    `json:"sort"`
	Limit   flexInt      `json:"limit"`
}

// ParseIntent extracts and decodes an intent from assistant output. Only a
// missing object, invalid JSON or a missing metric key fail; every other
// field falls back to its default.
func ParseIntent(text string) (query.Intent, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return query.Intent{}, err
	}

	var w wireIntent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return query.Intent{}, fmt.Errorf("%w: %v", ErrIntentUnparseable, err)
	}
	if w.Metric == nil {
		return query.Intent{}, fmt.Errorf("%w: missing metric", ErrIntentUnparseable)
	}

	in := query.Intent{
		Metric:  query.Metric(*w.Metric),
		GroupBy: query.Dimension(w.GroupBy),
		Limit:   w.Limit.value,
	}
	if f := w.Filters; f != nil {
		in.Filters = query.Filters{
			Month:    f.Month.ptr(),
			Year:     f.Year.ptr(),
			Seller:   string(f.Seller),
			Brand:    string(f.Brand),
			Category: string(f.Category),
			Client:   string(f.Client),
		}
	}
	if s := w.Sort; s != nil {
		in.Sort = query.Sort{By: query.Metric(s.By), Order: query.Order(s.Order)}
	}
	return in.Normalize(), nil
}
