package query

import "strings"

// ParseParamLine splits a "key=value(&key=value)*" line into params.
// Tokens without an '=' after a non-empty key are dropped; a blank line yields nil.
func ParseParamLine(line string) []Param {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	var params []Param
	for _, token := range strings.Split(line, "&") {
		idx := strings.Index(token, "=")
		if idx <= 0 {
			continue
		}
		params = append(params, Param{
			Key:   strings.TrimSpace(token[:idx]),
			Value: strings.TrimSpace(token[idx+1:]),
		})
	}
	return params
}
