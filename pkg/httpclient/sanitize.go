package httpclient

import (
	"net/url"
	"strings"
)

// redacted replaces sensitive query values in log output.
const redacted = "[REDACTED]"

// sensitiveParamFragments are matched case-insensitively against query
// parameter names. Airflow list filters (dag_id_pattern, order_by, ...) never
// contain these fragments.
var sensitiveParamFragments = []string{
	"token",
	"password",
	"secret",
	"api_key",
	"apikey",
	"credential",
}

// sanitizeURL returns u as a string with sensitive query values and any
// userinfo password replaced.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	if safe.User != nil {
		if _, hasPassword := safe.User.Password(); hasPassword {
			safe.User = url.UserPassword(safe.User.Username(), redacted)
		}
	}

	if safe.RawQuery != "" {
		q := safe.Query()
		for param := range q {
			if isSensitiveParam(param) {
				q.Set(param, redacted)
			}
		}
		safe.RawQuery = q.Encode()
	}

	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, fragment := range sensitiveParamFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
