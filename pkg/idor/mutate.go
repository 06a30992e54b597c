package idor

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// idParams are the query parameters the endpoint scan mutates.
var idParams = map[string]bool{"id": true, "user_id": true, "account_id": true}

// MutateQueryID increments the first id, user_id or account_id query
// parameter whose value is all digits. Parameters are visited in the order
// they appear. The rest of the query is kept byte for byte and the fragment
// is dropped. It reports false when no parameter qualifies.
func MutateQueryID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return "", false
	}

	parts := strings.Split(u.RawQuery, "&")
	for i, part := range parts {
		rawKey, rawVal, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || !idParams[key] {
			continue
		}
		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			continue
		}
		next, ok := increment(val)
		if !ok {
			continue
		}
		parts[i] = rawKey + "=" + next
		u.RawQuery = strings.Join(parts, "&")
		u.Fragment = ""
		u.RawFragment = ""
		return u.String(), true
	}
	return "", false
}

var rawMutatePattern = regexp.MustCompile(`(?:^|[?&;])(?:user_|account_)?id=(\d+)`)

// MutateRawID increments the first numeric id, user_id or account_id
// parameter in rawURL, whichever comes first. Names that merely end in "id",
// such as valid or order_id, are left alone.
func MutateRawID(rawURL string) (string, bool) {
	loc := rawMutatePattern.FindStringSubmatchIndex(rawURL)
	if loc == nil {
		return "", false
	}
	next, ok := increment(rawURL[loc[2]:loc[3]])
	if !ok {
		return "", false
	}
	return rawURL[:loc[2]] + next + rawURL[loc[3]:], true
}

// increment adds one to a non-empty ASCII decimal string.
func increment(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == math.MaxUint64 {
		return "", false
	}
	return strconv.FormatUint(n+1, 10), true
}
