package utils

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"syscall"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrMissingURL              = errors.New("no URL provided")
	ErrInvalidURL              = errors.New("invalid URL")
	ErrUnsupportedScheme       = errors.New("unsupported URL scheme")
	ErrTooManyRedirects        = errors.New("too many redirects")
	ErrClientHTTPError         = errors.New("client HTTP error (4xx)")    // Wraps original error/status
	ErrServerHTTPError         = errors.New("server HTTP error (5xx)")    // Wraps original error/status
	ErrOtherHTTPError          = errors.New("other HTTP error (non-2xx)") // Wraps original error/status
	ErrUnrecognizedContentType = errors.New("unrecognized content type")
	ErrRobotsDisallowed        = errors.New("disallowed by robots.txt")
	ErrParsing                 = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem              = errors.New("filesystem error") // Wraps os errors
	ErrInvalidFilename         = errors.New("invalid filename")
	ErrDatabase                = errors.New("database error") // Wraps badger errors
	ErrRequestCreation         = errors.New("failed to create HTTP request")
	ErrResponseBodyRead        = errors.New("failed to read response body")
	ErrConfigValidation        = errors.New("configuration validation error")
)

var statusCodePattern = regexp.MustCompile(`status (\d{3})`)

// CategorizeError maps an error to a predefined category string for logging and the history store.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrMissingURL), errors.Is(err, ErrInvalidURL):
		return "Validation_URL"
	case errors.Is(err, ErrUnsupportedScheme):
		return "Validation_Scheme"
	case errors.Is(err, ErrTooManyRedirects):
		return "Network_TooManyRedirects"
	case errors.Is(err, ErrClientHTTPError):
		if code := statusCode(err); code != "" {
			return "HTTP_" + code
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrUnrecognizedContentType):
		return "Content_Type"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrInvalidFilename):
		return "Filesystem_InvalidName"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}

	// Network errors (if not wrapped by custom sentinels)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	if category := networkCategory(err); category != "" {
		return category
	}

	return "Unknown"
}

// networkCategory classifies transport failures by type. String matching is the last resort
// and only looks at the error beneath *url.Error, whose text would otherwise include the request URL.
func networkCategory(err error) string {
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalidErr x509.CertificateInvalidError
	var recordHeaderErr tls.RecordHeaderError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Network_ConnectionRefused"
	case errors.Is(err, syscall.ECONNRESET):
		return "Network_ConnectionReset"
	case errors.As(err, &dnsErr):
		return "Network_DNSLookup"
	case errors.As(err, &certErr), errors.As(err, &unknownAuthErr), errors.As(err, &hostnameErr),
		errors.As(err, &certInvalidErr), errors.As(err, &recordHeaderErr):
		return "Network_TLS"
	}

	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	lowerErrMsg := strings.ToLower(msg)
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return ""
}

// UserMessage renders err as a short summary fit for display to an end user.
// It names the condition without exposing hostnames, paths or wrapped internals.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch category := CategorizeError(err); {
	case category == "Validation_URL":
		if errors.Is(err, ErrMissingURL) {
			return "Please enter a URL."
		}
		return "Please enter a valid http(s) URL."
	case category == "Validation_Scheme":
		return "The address is not an http(s) URL."
	case strings.HasPrefix(category, "HTTP_") && category != "HTTP_OtherStatus" && category != "HTTP_4xx" && category != "HTTP_5xx":
		return "The server responded with HTTP " + strings.TrimPrefix(category, "HTTP_") + "."
	case category == "HTTP_4xx":
		return "The server rejected the request."
	case category == "HTTP_5xx":
		if code := statusCode(err); code != "" {
			return "The server responded with HTTP " + code + "."
		}
		return "The server encountered an error."
	case category == "HTTP_OtherStatus":
		return "The server returned an unexpected response."
	case category == "Network_Timeout":
		return "The request timed out."
	case category == "Network_ConnectionRefused":
		return "The connection was refused."
	case category == "Network_DNSLookup":
		return "The host could not be found."
	case category == "Network_TLS":
		return "A secure connection could not be established."
	case category == "Network_TooManyRedirects":
		return "The page redirected too many times."
	case category == "Policy_Robots":
		return "Fetching this page is disallowed by robots.txt."
	case category == "Content_ParsingHTML":
		return "The page could not be parsed."
	case category == "System_ContextCanceled":
		return "The request was cancelled."
	case strings.HasPrefix(category, "Filesystem_"):
		return "The image could not be saved."
	}
	return "The request failed."
}

func statusCode(err error) string {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}
