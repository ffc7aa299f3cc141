package guard

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// SizeCheck is the result of input size validation
type SizeCheck struct {
	IsValid bool
	Error   string
}

// ValidateInputSize serializes the request body and rejects it when the
// byte length exceeds maxSizeKB. Exactly maxSizeKB is still valid. The
// failure message names both the limit and the observed size.
func ValidateInputSize(body any, maxSizeKB int) SizeCheck {
	raw, err := json.Marshal(body)
	if err != nil {
		return SizeCheck{Error: fmt.Sprintf("Request body is not serializable: %v", err)}
	}

	sizeKB := float64(len(raw)) / 1024
	if sizeKB > float64(maxSizeKB) {
		return SizeCheck{
			Error: fmt.Sprintf("Request too large. Maximum %dKB allowed, got %.1fKB", maxSizeKB, sizeKB),
		}
	}

	return SizeCheck{IsValid: true}
}

// SecureCORSHeaders returns the CORS header set for a request origin.
// The origin is echoed back only when it matches the allow-list exactly
// or via a *-wildcard pattern; otherwise the literal value "null" is
// returned, actively blocking the origin rather than omitting the header.
func SecureCORSHeaders(origin string, allowedOrigins []string) map[string]string {
	allowValue := "null"
	if origin != "" && originAllowed(origin, allowedOrigins) {
		allowValue = origin
	}

	return map[string]string{
		"Access-Control-Allow-Origin":  allowValue,
		"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
		"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
		"Access-Control-Max-Age":       "86400",
	}
}

func originAllowed(origin string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
		if strings.Contains(allowed, "*") {
			pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(allowed), `\*`, ".*") + "$"
			if matched, err := regexp.MatchString(pattern, origin); err == nil && matched {
				return true
			}
		}
	}
	return false
}
