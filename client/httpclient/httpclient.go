// Package httpclient implements the HTTP backend variant of the
// uniform client contract, grounded on the teacher's pooled-transport
// upstream client.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Client forwards subrequests to one HTTP backend, reusing a pooled
// *http.Client whose idle-connection pool is sized by the ClientSpec's
// MaxConns; MinConns is not applied.
type Client struct {
	id             string
	baseURL        string
	defaultHeaders map[string]string
	httpClient     *http.Client
	log            zerolog.Logger
}

// New constructs a pooled HTTP client for spec (already defaulted via
// ClientSpec.WithDefaults).
func New(spec gateway.ClientSpec, log zerolog.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        spec.MaxConns,
		MaxIdleConnsPerHost: spec.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		id:             spec.ID,
		baseURL:        strings.TrimRight(spec.BaseURL, "/"),
		defaultHeaders: spec.DefaultHeaders,
		httpClient:     &http.Client{Transport: transport, Timeout: spec.Timeout},
		log:            log.With().Str("client_id", spec.ID).Str("client_kind", "http").Logger(),
	}, nil
}

// Execute implements client.Client.
func (c *Client) Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
	root := gctx.Root()

	uri, err := interpolate.ResolveString(spec.URI, root)
	if err != nil {
		return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
	}

	url := c.baseURL
	if uri != "" {
		if !strings.HasPrefix(uri, "/") {
			url += "/"
		}
		url += uri
	}

	var bodyReader io.Reader
	var bodyForSend []byte
	if spec.Body != nil {
		resolved, err := interpolate.Resolve(bodyExprString(spec.Body), root)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
		}
		if resolved.Kind() == value.KindString {
			bodyForSend = []byte(resolved.String())
		} else {
			bodyForSend, err = json.Marshal(value.ToAny(resolved))
			if err != nil {
				return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, c.id, spec.Name, err.Error())
			}
		}
		bodyReader = bytes.NewReader(bodyForSend)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(spec.Method), url, bodyReader)
	if err != nil {
		return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestProtocol, c.id, spec.Name, err.Error())
	}

	merged := make(map[string]string, len(c.defaultHeaders)+len(spec.Headers))
	for k, v := range c.defaultHeaders {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range spec.Headers {
		resolvedV, err := interpolate.ResolveString(v, root)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
		}
		merged[strings.ToLower(k)] = resolvedV
	}
	for k, v := range merged {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestTimeout, c.id, spec.Name, err.Error())
		}
		return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestConnect, c.id, spec.Name, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestProtocol, c.id, spec.Name, err.Error())
	}

	var bodyValue value.Value
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") && len(respBody) > 0 {
		bodyValue, err = value.ParseJSON(respBody)
		if err != nil {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, c.id, spec.Name, fmt.Sprintf("parse JSON response: %s", err))
		}
	} else {
		bodyValue = value.String(string(respBody))
	}

	headers := value.NewObject()
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers.Set(strings.ToLower(k), value.String(v[0]))
		}
	}

	out := value.NewObject()
	out.Set("client_id", value.String(c.id))
	out.Set("type", value.String("http"))
	out.Set("status", value.Integer(int64(resp.StatusCode)))
	out.Set("body", bodyValue)
	out.Set("headers", value.FromObject(headers))
	return value.FromObject(out), nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// bodyExprString renders a configured body (string literal, or a
// hand-authored JSON-shaped tree) into the single-expression form
// interpolate.Resolve expects. Bodies are almost always authored as
// plain "${...}" or literal strings in the route config; non-string
// bodies are serialized back to their source string form first.
func bodyExprString(body any) string {
	if s, ok := body.(string); ok {
		return s
	}
	b, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(b)
}
