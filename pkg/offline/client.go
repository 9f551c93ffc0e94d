package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/ctp-enrollment-api/pkg/errors"
)

// ErrOffline marks failures caused by missing connectivity. Submissions that
// fail this way belong in the pending queue.
var ErrOffline = errors.New("server unreachable")

// APIError is a non-transient rejection returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *appErrors.Error `json:"error"`
}

// ClientOptions configures the API client.
type ClientOptions struct {
	// Token is a bearer access token; without it submissions use the public endpoint.
	Token   string
	Timeout time.Duration
}

// Client talks to the enrollment API.
type Client struct {
	http   *resty.Client
	public bool
}

// NewClient builds a client for baseURL (including the API prefix).
func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		rc.SetAuthToken(opts.Token)
	}
	return &Client{http: rc, public: opts.Token == ""}
}

// CreateEnrollment submits req and returns the persisted record.
func (c *Client) CreateEnrollment(ctx context.Context, req dto.EnrollmentRequest) (*models.Enrollment, error) {
	path := "/enrollments"
	if c.public {
		path = "/public/enrollments"
	}
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&env).
		SetError(&env).
		Post(path)
	if err := classify(ctx, resp, err, &env); err != nil {
		return nil, err
	}
	var enrollment models.Enrollment
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &enrollment); err != nil {
			return nil, fmt.Errorf("decode enrollment: %w", err)
		}
	}
	return &enrollment, nil
}

// Health checks server reachability.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrOffline, resp.StatusCode())
	}
	return nil
}

// Submit implements Submitter. The entry id doubles as the enrollment id.
func (c *Client) Submit(ctx context.Context, e Entry) error {
	req := e.Enrollment
	if req.ID == "" {
		req.ID = e.ID
	}
	_, err := c.CreateEnrollment(ctx, req)
	return err
}

func classify(ctx context.Context, resp *resty.Response, err error, env *envelope) error {
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	// Gateway errors without an API envelope come from a proxy in front of the server.
	switch resp.StatusCode() {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		if env.Error == nil {
			return fmt.Errorf("%w: status %d", ErrOffline, resp.StatusCode())
		}
	}
	if resp.IsError() || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode(), Code: "UNKNOWN", Message: resp.Status()}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	return nil
}
