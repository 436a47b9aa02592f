package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/submerge/internal/model"
)

// Kind tells which kind of document is being fetched. It only selects the
// error stage and the default size cap.
type Kind int

const (
	KindSubscription Kind = iota
	KindPrimary
	KindManual
	KindPageIndex
	KindPage
)

func (k Kind) String() string {
	switch k {
	case KindSubscription:
		return "fetch_sub"
	case KindPrimary:
		return "fetch_primary"
	case KindManual:
		return "fetch_manual"
	case KindPageIndex:
		return "fetch_page_index"
	case KindPage:
		return "fetch_page"
	default:
		// Unknown kind is a programmer error; still return something stable.
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	if k == KindSubscription {
		return 10 * 1024 * 1024
	}
	return 2 * 1024 * 1024
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "clash.meta"
)

// Error codes carried in FetchError.AppError.Code.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeFailed          = "FETCH_FAILED"
	CodeTimeout         = "FETCH_TIMEOUT"
	CodeTooLarge        = "TOO_LARGE"
	CodeInvalidUTF8     = "FETCH_INVALID_UTF8"
)

type Options struct {
	Timeout      time.Duration // default 30s
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
	UserAgent    string

	// Transport is the underlying round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

func (o Options) withDefaults(kind Kind) Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = kind.defaultMaxBytes()
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Transport == nil {
		o.Transport = http.DefaultTransport
	}
	return o
}

// Fetcher retrieves one remote text document.
type Fetcher interface {
	FetchText(ctx context.Context, kind Kind, rawURL string) (string, error)
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	Options Options
}

func NewHTTPFetcher(opt Options) *HTTPFetcher {
	return &HTTPFetcher{Options: opt}
}

func (f *HTTPFetcher) FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, f.Options)
}

type FetchError struct {
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

func FetchTextWithOptions(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	opt = opt.withDefaults(kind)
	fail := func(code, message string, cause error) error {
		return &FetchError{
			AppError: model.AppError{
				Code:    code,
				Message: message,
				Stage:   kind.String(),
				URL:     rawURL,
			},
			Cause: cause,
		}
	}

	if opt.MaxBytes <= 0 {
		return "", fail(CodeInvalidArgument, "响应大小上限必须大于 0", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fail(CodeInvalidArgument, "仅允许 http/https URL", errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   opt.Timeout,
		Transport: opt.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 1st redirect => len(via)==1, so this allows exactly MaxRedirects hops.
			if len(via) > opt.MaxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fail(CodeInvalidArgument, "请求 URL 不合法", err)
	}
	req.Header.Set("User-Agent", opt.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case errors.Is(err, errTooManyRedirects):
			return "", fail(CodeFailed, fmt.Sprintf("重定向次数超过上限（>%d）", opt.MaxRedirects), err)
		case errors.Is(err, errRedirectBadScheme):
			return "", fail(CodeInvalidArgument, "重定向目标仅允许 http/https", err)
		case isTimeout(err):
			return "", fail(CodeTimeout, "拉取远程资源超时", err)
		default:
			return "", fail(CodeFailed, "拉取远程资源失败", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fail(CodeFailed, fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), nil)
	}

	// Read at most MaxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, opt.MaxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", fail(CodeTimeout, "拉取远程资源超时", err)
		}
		return "", fail(CodeFailed, "读取上游响应失败", err)
	}
	if int64(len(body)) > opt.MaxBytes {
		return "", fail(CodeTooLarge, fmt.Sprintf("远程资源过大（>%d bytes）", opt.MaxBytes), nil)
	}
	if !utf8.Valid(body) {
		return "", fail(CodeInvalidUTF8, "远程资源不是合法 UTF-8 文本", nil)
	}
	return string(body), nil
}

// isTimeout unwraps *url.Error and friends.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
