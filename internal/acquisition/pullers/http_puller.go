package pullers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/logger"
	"gomarket_mdm/pkg/records"
)

type HTTPOptions struct {
	ParseSettings `mapstructure:",squash"`

	URL         string            `mapstructure:"url" validate:"omitempty,url"`
	Headers     map[string]string `mapstructure:"headers"`
	AuthType    string            `mapstructure:"auth_type" validate:"omitempty,oneof=none basic token"`
	Username    string            `mapstructure:"username" validate:"required_if=AuthType basic"`
	Password    string            `mapstructure:"password"`
	Token       string            `mapstructure:"token" validate:"required_if=AuthType token"`
	Pagination  string            `mapstructure:"pagination_type" validate:"omitempty,oneof=offset page none"`
	LimitParam  string            `mapstructure:"limit_param"`
	OffsetParam string            `mapstructure:"offset_param"`
	PageParam   string            `mapstructure:"page_param"`
}

// HTTPPuller забирает образец данных из API поставщика одним GET-запросом.
type HTTPPuller struct {
	client      *http.Client
	sampleLimit int
	log         logger.Logger
}

func NewHTTPPuller(client *http.Client, sampleLimit int, log logger.Logger) *HTTPPuller {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPPuller{
		client:      client,
		sampleLimit: sampleLimit,
		log:         logger.OrDiscard(log),
	}
}

func (p *HTTPPuller) PerformPull(ctx context.Context, source acquisition.RemoteSource, budget time.Duration) (*acquisition.Payload, error) {
	opts, parse, u, err := p.prepare(source)
	if err != nil {
		return nil, err
	}

	p.log.Log("GET %s (budget %v)", u.Redacted(), budget)
	resp, err := p.do(ctx, http.MethodGet, u, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, failure.Wrap(err, failure.WithCode(acquisition.ErrTransportFailure),
			failure.Message("failed to read response body: "+err.Error()),
		)
	}

	parse = withDetectedFormat(parse, opts.ParseSettings, formatFromContentType(resp.Header.Get("Content-Type")))
	payload := payloadFor(parse, body, fileLabel(u), u.Redacted())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payload, statusError(resp.StatusCode, u.Redacted())
	}
	return payload, nil
}

// TestConnection отправляет HEAD; если сервер его не поддерживает (405), повторяет GET.
func (p *HTTPPuller) TestConnection(ctx context.Context, source acquisition.RemoteSource, _ time.Duration) error {
	opts, _, u, err := p.prepare(source)
	if err != nil {
		return err
	}

	status, err := p.statusOf(ctx, http.MethodHead, u, opts)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = p.statusOf(ctx, http.MethodGet, u, opts)
	}
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return statusError(status, u.Redacted())
	}
	p.log.Log("Connection to %s OK (status %d)", u.Redacted(), status)
	return nil
}

func (p *HTTPPuller) prepare(source acquisition.RemoteSource) (HTTPOptions, records.Options, *url.URL, error) {
	var opts HTTPOptions
	if err := decodeOptions(source, &opts); err != nil {
		return opts, records.Options{}, nil, err
	}
	parse, err := parseOptions(source, opts.ParseSettings)
	if err != nil {
		return opts, parse, nil, err
	}
	target := opts.URL
	if target == "" {
		target = source.Path
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return opts, parse, nil, invalidSource(source, fmt.Errorf("invalid url %q", target))
	}
	u.RawQuery = p.query(u.Query(), opts).Encode()
	return opts, parse, u, nil
}

func (p *HTTPPuller) do(ctx context.Context, method string, u *url.URL, opts HTTPOptions) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, failure.Wrap(err, failure.WithCode(acquisition.ErrInvalidSource), failure.Message(err.Error()))
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	switch opts.AuthType {
	case "basic":
		req.SetBasicAuth(opts.Username, opts.Password)
	case "token":
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, failure.Wrap(err, failure.WithCode(acquisition.ErrTransportFailure),
			failure.Message(err.Error()),
			failure.Context{"url": u.Redacted()},
		)
	}
	return resp, nil
}

func (p *HTTPPuller) statusOf(ctx context.Context, method string, u *url.URL, opts HTTPOptions) (int, error) {
	resp, err := p.do(ctx, method, u, opts)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (p *HTTPPuller) query(q url.Values, opts HTTPOptions) url.Values {
	if p.sampleLimit <= 0 {
		return q
	}
	limit := strconv.Itoa(p.sampleLimit)
	switch opts.Pagination {
	case "offset":
		q.Set(orDefault(opts.LimitParam, "limit"), limit)
		q.Set(orDefault(opts.OffsetParam, "offset"), "0")
	case "page":
		q.Set(orDefault(opts.LimitParam, "per_page"), limit)
		q.Set(orDefault(opts.PageParam, "page"), "1")
	case "":
		q.Set(orDefault(opts.LimitParam, "limit"), limit)
	}
	return q
}

func statusError(status int, target string) error {
	code := acquisition.ErrTransportFailure
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = acquisition.ErrAuthFailure
	case http.StatusTooManyRequests:
		code = acquisition.ErrRateLimitExhausted
	}
	return failure.New(code,
		failure.Message(fmt.Sprintf("unexpected status code %d from %s", status, target)),
		failure.Context{"status": strconv.Itoa(status)},
	)
}

func formatFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "csv"):
		return "csv"
	case strings.Contains(ct, "tab-separated"):
		return "tsv"
	}
	return ""
}

func fileLabel(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return u.Host
	}
	return base
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
