package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	awssigner "github.com/aws/aws-sdk-go-v2/aws"
	v4signer "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/errs"
	"github.com/oriys/tetra/internal/observability"
)

// CredentialEnvVar is the environment variable the HTTP client reads its
// bearer token from.
const CredentialEnvVar = "TETRA_API_KEY"

// HTTPClient is the default ProviderClient: a thin REST wrapper around the
// fleet's control API, optionally signing outbound requests with AWS SigV4
// when the provider fronts its API with an AWS-compatible gateway.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client

	signRequests bool
	signer       *v4signer.Signer
	awsCreds     awssigner.CredentialsProvider
	awsRegion    string

	grpc *grpcInvoker // non-nil when queue-based invocation is routed over gRPC
}

// Option configures an HTTPClient at construction.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client (timeouts, transport
// pooling, TLS config).
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithAWSSigV4 enables request signing using static AWS credentials,
// matching ProviderConfig.AWSSigning/AWSRegion.
func WithAWSSigV4(accessKey, secretKey, sessionToken, region string) Option {
	return func(h *HTTPClient) {
		h.signRequests = true
		h.awsRegion = region
		h.awsCreds = credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken)
		h.signer = v4signer.NewSigner()
	}
}

// WithGRPCInvoke routes Invoke calls for queue-based resources over a gRPC
// connection to addr instead of plain HTTP, matching
// ProviderConfig.GRPCAddr.
func WithGRPCInvoke(addr string) Option {
	return func(h *HTTPClient) { h.grpc = newGRPCInvoker(addr) }
}

// NewHTTPClient constructs an HTTPClient against baseURL, authenticating
// with token. Returns ErrCredentialMissing if token is empty.
func NewHTTPClient(baseURL, token string, opts ...Option) (*HTTPClient, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %s not set", errs.ErrCredentialMissing, CredentialEnvVar)
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromEnv builds an HTTPClient from baseURL/credential-env-var, wiring
// AWS SigV4 signing and gRPC invocation when cfg requests them.
func NewFromEnv(baseURL string, awsSigning bool, awsRegion, grpcAddr string) (*HTTPClient, error) {
	token := readCredential()
	var opts []Option
	if awsSigning {
		if ak, sk, st := readAWSCredentials(); ak != "" && sk != "" {
			opts = append(opts, WithAWSSigV4(ak, sk, st, awsRegion))
		} else {
			opts = append(opts, WithAWSDefaultCredentials(awsRegion))
		}
	}
	if grpcAddr != "" {
		opts = append(opts, WithGRPCInvoke(grpcAddr))
	}
	return NewHTTPClient(baseURL, token, opts...)
}

func (c *HTTPClient) List(ctx context.Context, kind domain.ResourceKind, nameFilter string) ([]domain.RemoteResource, error) {
	q := url.Values{}
	q.Set("kind", string(kind))
	if nameFilter != "" {
		q.Set("name", nameFilter)
	}
	var out struct {
		Resources []domain.RemoteResource `json:"resources"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/resources?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Resources, nil
}

func (c *HTTPClient) Create(ctx context.Context, kind domain.ResourceKind, payload map[string]any) (domain.RemoteResource, error) {
	body := map[string]any{"kind": string(kind), "config": payload}
	var out domain.RemoteResource
	if err := c.do(ctx, http.MethodPost, "/v1/resources", body, &out); err != nil {
		return domain.RemoteResource{}, err
	}
	return out, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/resources/"+url.PathEscape(id), nil, nil)
}

// Invoke sends envelope to url. Load-balanced HTTP resources carry their
// method/path in envelope.Routing and the envelope payload is sent as the
// raw HTTP body; queue-based resources with no routing are dispatched over
// gRPC when configured, otherwise POSTed to url directly.
func (c *HTTPClient) Invoke(ctx context.Context, target string, envelope domain.CallEnvelope, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if envelope.Routing.Method == "" && c.grpc != nil {
		return c.grpc.invoke(ctx, envelope.Payload)
	}

	method := string(envelope.Routing.Method)
	if method == "" {
		method = http.MethodPost
	}
	path := envelope.Routing.Path
	if path == "" {
		path = "/invoke"
	}

	req, err := http.NewRequestWithContext(ctx, method, target+path, bytes.NewReader(envelope.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", errs.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Function-Name", envelope.FunctionName)
	observability.InjectHTTP(ctx, req)

	return c.send(req)
}

func (c *HTTPClient) FetchManifest(ctx context.Context, mothershipID string) (*domain.Manifest, error) {
	var m domain.Manifest
	path := "/v1/manifest"
	if mothershipID != "" {
		path += "?mothership_id=" + url.QueryEscape(mothershipID)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &m); err != nil {
		var statusErr *StatusCodeError
		if errors.As(err, &statusErr) &&
			(statusErr.Status == http.StatusNotFound || statusErr.Status == http.StatusNotImplemented) {
			return nil, fmt.Errorf("%w: manifest directory responded %d", ErrNotImplemented, statusErr.Status)
		}
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) UpdateManifest(ctx context.Context, envID string, manifest *domain.Manifest) error {
	return c.do(ctx, http.MethodPut, "/v1/manifest/"+url.PathEscape(envID), manifest, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", errs.ErrProviderUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) send(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	if c.signRequests {
		if err := c.sign(req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", errs.ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	statusErr := &StatusCodeError{Status: resp.StatusCode, Body: string(data)}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
		return nil, statusErr
	}
	return nil, fmt.Errorf("%w: %w", errs.ErrProviderRejected, statusErr)
}

func readCredential() string {
	return strings.TrimSpace(envOrEmpty(CredentialEnvVar))
}
