// SPDX-License-Identifier: MIT

package errclass

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
)

// textRules is the ordered mapping from signals in external-tool output
// to error types. Order matters: "connection timed out" is TIMEOUT, not
// NETWORK, because the timeout rule is checked first.
var textRules = []struct {
	needles []string
	t       Type
}{
	{[]string{"timeout", "timed out"}, Timeout},
	{[]string{"429", "rate limit", "too many requests"}, RateLimit},
	{[]string{"401", "403", "unauthorized"}, Auth},
	{[]string{"404", "not found", "unavailable", "private", "deleted", "removed", "blocked", "region", "copyright"}, Content},
	{[]string{"network", "connection", "dns", "refused", "reset", "unreachable", "failed to connect"}, Network},
}

// ClassifyText maps free-form error text (subprocess stderr, API error
// messages) onto the taxonomy. Returns Unknown when no rule matches.
func ClassifyText(s string) Type {
	lower := strings.ToLower(s)
	for _, rule := range textRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.t
			}
		}
	}
	return Unknown
}

// ClassifyOutput classifies the outcome of an external tool invocation
// from its stderr and exit code. Any non-zero exit that matches no text
// rule is EXTERNAL_SERVICE, never Unknown: the tool itself reported
// failure.
func ClassifyOutput(stderr string, exitCode int) Type {
	if t := ClassifyText(stderr); t != Unknown {
		return t
	}
	if exitCode != 0 {
		return ExternalService
	}
	return Unknown
}

// ClassifyHTTPStatus maps an HTTP response status onto the taxonomy.
// 2xx/3xx are not errors and map to the zero Type.
func ClassifyHTTPStatus(code int) Type {
	switch {
	case code < 400:
		return ""
	case code == 401 || code == 403:
		return Auth
	case code == 404 || code == 410 || code == 451:
		return Content
	case code == 408:
		return Timeout
	case code == 429:
		return RateLimit
	case code >= 500:
		return ExternalService
	case code == 400 || code == 422:
		return InvalidInput
	default:
		return Unknown
	}
}

// typeOf returns the type of an already-classified error in the chain,
// or Unknown.
func typeOf(err error) Type {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return Unknown
}

// refine picks the most specific type for err: an existing inner
// classification first, then cancellation/deadline, then the
// caller-supplied fallback.
func refine(t Type, err error) Type {
	if inner := typeOf(err); inner != Unknown {
		return inner
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return t
}

// Classify maps an arbitrary Go error onto the taxonomy. Already
// classified errors keep their type; context, net, os and json errors
// are recognized by type; everything else falls back to text rules.
func Classify(err error) Type {
	if err == nil {
		return ""
	}
	if t := typeOf(err); t != Unknown {
		return t
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Network
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Network
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return Parse
	}

	var pathErr *os.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) {
		return FileIO
	}

	return ClassifyText(err.Error())
}

// StageOf extracts the stage recorded on a classified error, if any.
func StageOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}
