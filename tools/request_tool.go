package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestMethod enumerates the HTTP verbs a RequestTool may issue.
type RequestMethod string

const (
	MethodGET    RequestMethod = "GET"
	MethodPOST   RequestMethod = "POST"
	MethodPUT    RequestMethod = "PUT"
	MethodPATCH  RequestMethod = "PATCH"
	MethodDELETE RequestMethod = "DELETE"
)

// RequestTool is the generic HTTP tool described in the external-interfaces
// section: a fixed (url, method) pair that accepts request_params and/or
// request_json at call time and reports {status_code, content} or {error}.
type RequestTool struct {
	name              string
	description       string
	url               string
	method            RequestMethod
	headers           map[string]string
	requestParamsKeys []string
	requestJSONKeys   []string

	httpClient *http.Client
}

// RequestToolConfig configures a RequestTool instance.
type RequestToolConfig struct {
	Name        string
	Description string
	URL         string
	Method      RequestMethod
	Headers     map[string]string
	// RequestParamsSchema/RequestJSONSchema list the parameter names the
	// caller is expected to supply in request_params / request_json. A
	// channel is advertised in Info only when its schema is non-empty;
	// Execute does not check the supplied keys against these names and
	// forwards request_params / request_json even when the schema is empty.
	RequestParamsSchema []string
	RequestJSONSchema   []string
	Timeout             time.Duration
}

// NewRequestTool builds a RequestTool from cfg.
func NewRequestTool(cfg RequestToolConfig) *RequestTool {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RequestTool{
		name:              cfg.Name,
		description:       cfg.Description,
		url:               cfg.URL,
		method:            cfg.Method,
		headers:           cfg.Headers,
		requestParamsKeys: cfg.RequestParamsSchema,
		requestJSONKeys:   cfg.RequestJSONSchema,
		httpClient:        &http.Client{Timeout: timeout},
	}
}

func (t *RequestTool) Info() Info {
	var params []Parameter
	if len(t.requestParamsKeys) > 0 {
		params = append(params, Parameter{
			Name:        "request_params",
			Type:        "object",
			Description: "Query parameters to send with the request.",
			Required:    true,
		})
	}
	if len(t.requestJSONKeys) > 0 {
		params = append(params, Parameter{
			Name:        "request_json",
			Type:        "object",
			Description: "JSON body to send with the request.",
			Required:    true,
		})
	}
	return Info{Name: t.name, Description: t.description, Parameters: params}
}

func (t *RequestTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	reqURL, mergedQuery, err := t.mergeQuery(args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	var bodyReader io.Reader
	if body, ok := args["request_json"]; ok {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Result{Success: false, Error: err.Error()}, nil
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(t.method), reqURL, bodyReader)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	httpReq.URL.RawQuery = mergedQuery.Encode()
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	var jsonContent any
	contentField := map[string]any{"status_code": resp.StatusCode}
	if json.Unmarshal(raw, &jsonContent) == nil {
		contentField["content"] = jsonContent
	} else {
		contentField["content"] = string(raw)
	}

	return Result{
		Success: resp.StatusCode < 400,
		Content: string(raw),
		Output:  contentField,
	}, nil
}

// mergeQuery splits any "?k=v&..." suffix already present on t.url and
// merges it with request_params supplied at call time, call-time values
// winning on key collisions.
func (t *RequestTool) mergeQuery(args map[string]any) (string, url.Values, error) {
	parts := strings.SplitN(t.url, "?", 2)
	base := parts[0]
	merged := url.Values{}
	if len(parts) == 2 {
		existing, err := url.ParseQuery(parts[1])
		if err != nil {
			return "", nil, fmt.Errorf("tools: parsing existing query on %q: %w", t.url, err)
		}
		merged = existing
	}
	if rp, ok := args["request_params"].(map[string]any); ok {
		for k, v := range rp {
			merged.Set(k, fmt.Sprintf("%v", v))
		}
	}
	return base, merged, nil
}
