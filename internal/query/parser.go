package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseString turns a pre-formed parameter string such as
// "q=title:solr&fq=type:book&rows=5" into a Request.
//
// A string without any '=' is taken as the bare query text. Tokens containing
// '%' are URL-decoded; other tokens, and values that are not valid URL
// encoding, are used as-is.
func ParseString(s string) (*Request, error) {
	req := NewRequest()
	raw := strings.TrimPrefix(strings.TrimSpace(s), "?")
	if !strings.Contains(raw, "=") {
		req.Query = raw
		return req, nil
	}

	for _, token := range strings.Split(raw, "&") {
		if token == "" {
			continue
		}
		key, value, _ := strings.Cut(token, "=")
		key = unescape(key)
		value = unescape(value)

		switch key {
		case "q":
			req.Query = value
		case "qt":
			req.QueryType = value
		case "fq":
			req.AddFilterQuery(value)
		case "facet":
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("facet: %w", err)
			}
			req.Facet.Enabled = enabled
		case "facet.field":
			req.AddFacetField(value)
		case "facet.mincount":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("facet.mincount: %w", err)
			}
			req.Facet.MinCount = n
		case "facet.limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("facet.limit: %w", err)
			}
			req.Facet.Limit = n
		default:
			req.Add(key, value)
		}
	}
	return req, nil
}

// unescape decodes tokens that carry percent escapes. Tokens without '%' are
// taken literally so unencoded Solr syntax such as "+title:solr" keeps its '+'.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}
