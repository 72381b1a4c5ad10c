// Package httprequest provides the HTTP request node executor.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/dukex/nodebase/pkg/models"
	"github.com/dukex/nodebase/pkg/nodes"
	"github.com/dukex/nodebase/pkg/protocol"
	"github.com/dukex/nodebase/pkg/step"
	"github.com/dukex/nodebase/pkg/template"
)

const (
	op                  = "HTTP Request node"
	defaultVariableName = "httpResponse"
	defaultTimeout      = 30
	maxBodySize         = 10 << 20
)

// Config is the node data of an HTTP_REQUEST node.
type Config struct {
	Endpoint     string `json:"endpoint"     label:"Endpoint"      validate:"required"`
	Method       string `json:"method"       label:"Method"        validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Body         string `json:"body"`
	VariableName string `json:"variableName" label:"Variable name" validate:"omitempty,varname"`
	Timeout      int    `json:"timeout"      label:"Timeout"       validate:"omitempty,min=1,max=300"`
}

// Response is the value bound under the node's variable name.
type Response struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Data       any    `json:"data"`
}

type Executor struct {
	transport http.RoundTripper
}

// New returns the executor. A nil transport uses a traced default transport.
func New(transport http.RoundTripper) *Executor {
	return &Executor{transport: transport}
}

func (e *Executor) Type() models.NodeType {
	return models.NodeTypeHTTPRequest
}

func (e *Executor) Execute(ctx context.Context, in protocol.Input) (models.Context, error) {
	in.Loading(ctx)

	var config Config

	err := protocol.Decode(op, in.Data, &config)
	if err != nil {
		return in.Fail(ctx, err)
	}

	config.Method = strings.ToUpper(config.Method)

	err = protocol.Validate(op, config)
	if err != nil {
		return in.Fail(ctx, err)
	}

	if config.VariableName == "" {
		config.VariableName = defaultVariableName
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	endpoint, err := template.RenderText(config.Endpoint, in.Context)
	if err != nil {
		return in.Fail(ctx, execerr.Validation(op, "Invalid endpoint template: %v", err))
	}

	var body string

	if hasBody(config.Method) {
		body, err = template.RenderJSON(config.Body, in.Context)
		if err != nil {
			return in.Fail(ctx, execerr.Validation(op, "Invalid body: %v", err))
		}
	}

	response, err := step.Run(ctx, in.Steps, "http-request", func(ctx context.Context) (Response, error) {
		return e.do(ctx, config, endpoint, body)
	})
	if err != nil {
		return in.Fail(ctx, err)
	}

	in.Log().DebugContext(ctx, "HTTP request completed", "node_id", in.NodeID, "status", response.Status)

	return in.Succeed(ctx, in.Context.With(config.VariableName, map[string]any{
		"httpResponse": response,
	}))
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func (e *Executor) client(timeout time.Duration) *http.Client {
	client := nodes.NewHTTPClient(timeout)
	if e.transport != nil {
		client.Transport = e.transport
	}

	return client
}

func (e *Executor) do(ctx context.Context, config Config, endpoint, body string) (Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, config.Method, endpoint, reader)
	if err != nil {
		return Response{}, execerr.Validation(op, "Invalid endpoint %q: %v", endpoint, err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client(time.Duration(config.Timeout) * time.Second).Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}

		return Response{}, execerr.Transport(op, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, execerr.Transport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return Response{}, execerr.FromStatus(op, resp.StatusCode, nodes.Truncate(string(raw), 512))
	}

	return Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Data:       decodeBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

// decodeBody parses JSON responses and returns everything else as text.
func decodeBody(contentType string, raw []byte) any {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")) {
		var data any
		if json.Unmarshal(raw, &data) == nil {
			return data
		}
	}

	return string(raw)
}
