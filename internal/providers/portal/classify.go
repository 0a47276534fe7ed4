package portal

import (
	"net/http"
	"strings"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/providers"
	"realestate/internal/rawtree"
)

type resultClass int

const (
	resultOK resultClass = iota
	resultNoData
	resultQuota
	resultAuth
	resultTransient
	resultPermanent
)

// resultClasses covers the data.go.kr gateway codes, the StanReginCd INFO
// codes and the odcloud negative codes.
var resultClasses = map[string]resultClass{
	"0":      resultOK,
	"00":     resultOK,
	"000":    resultOK,
	"INFO-0": resultOK,
	"03":     resultNoData,
	"INFO-3": resultNoData,
	"22":     resultQuota,
	"20":     resultAuth,
	"30":     resultAuth,
	"31":     resultAuth,
	"32":     resultAuth,
	"-4":     resultAuth,
	"-401":   resultAuth,
	"01":     resultTransient,
	"04":     resultTransient,
	"05":     resultTransient,
}

var quotaMarkers = []string{
	"quota",
	"limited_number_of_service_requests",
	"rate limit",
	"too many requests",
}

func classifyResultCode(code string) resultClass {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return resultOK
	}
	if class, ok := resultClasses[code]; ok {
		return class
	}
	return resultPermanent
}

// classifyStatus maps non-2xx statuses onto failure kinds. A 403 carrying a
// quota message is a rate limit rather than a credential problem.
func classifyStatus(desc endpoint.Descriptor, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusTooManyRequests:
		return statusError(apperr.KindRateLimited, desc, resp, body)
	case status == http.StatusForbidden && isQuotaExceeded(body):
		return statusError(apperr.KindRateLimited, desc, resp, body)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return statusError(apperr.KindAuthFailure, desc, resp, body)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return statusError(apperr.KindTransient, desc, resp, body)
	default:
		return statusError(apperr.KindPermanent, desc, resp, body)
	}
}

// classifyPayload inspects the result code carried inside a 2xx response.
func classifyPayload(desc endpoint.Descriptor, root rawtree.Node) error {
	code, _ := providers.FirstText(root, desc.Paging.ResultCodePaths)
	message, _ := providers.FirstText(root, desc.Paging.ResultMsgPaths)

	switch classifyResultCode(code) {
	case resultOK, resultNoData:
		if isQuotaExceeded([]byte(message)) {
			return payloadError(apperr.KindRateLimited, desc, code, message)
		}
		return nil
	case resultQuota:
		return payloadError(apperr.KindRateLimited, desc, code, message)
	case resultAuth:
		return payloadError(apperr.KindAuthFailure, desc, code, message)
	case resultTransient:
		return payloadError(apperr.KindTransient, desc, code, message)
	default:
		if isQuotaExceeded([]byte(message)) {
			return payloadError(apperr.KindRateLimited, desc, code, message)
		}
		return payloadError(apperr.KindPermanent, desc, code, message)
	}
}

func payloadError(kind apperr.Kind, desc endpoint.Descriptor, code, message string) error {
	if message == "" {
		return apperr.New(kind, "%s: result code %s", desc.Tool, code)
	}
	return apperr.New(kind, "%s: result code %s: %s", desc.Tool, code, message)
}

func isQuotaExceeded(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
