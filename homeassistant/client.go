package homeassistant

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized means the api_key was rejected.
	ErrUnauthorized = errors.New("home assistant: unauthorized, check api_key")
	// ErrNotFound means the entity does not exist on this instance.
	ErrNotFound = errors.New("home assistant: not found")
)

// Options tune the REST client. The zero value gives a 5 second timeout
// with TLS verification on.
type Options struct {
	Timeout     time.Duration
	InsecureSSL bool
	Retries     uint64
}

// Client calls the Home Assistant REST API.
type Client struct {
	host    string
	auth    Auth
	http    *http.Client
	retries uint64
}

func NewClient(host string, auth Auth, opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	retries := opts.Retries
	if retries == 0 {
		retries = 3
	}
	httpClient := &http.Client{Timeout: timeout}
	if opts.InsecureSSL {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		host:    strings.TrimRight(host, "/"),
		auth:    auth,
		http:    httpClient,
		retries: retries,
	}
}

func (c *Client) Host() string {
	return c.host
}

func retryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	return policy
}

// do runs a request, retrying transient failures (connection errors, 429,
// 5xx). Auth rejections and 4xx never retry.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		c.auth.Authorize(req.Header)
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(ErrUnauthorized)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return errors.Errorf("%s %s: %s", method, path, resp.Status)
		case resp.StatusCode >= 400:
			return backoff.Permanent(errors.Errorf("%s %s: %s", method, path, resp.Status))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(errors.Wrapf(err, "decoding %s %s", method, path))
			}
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(retryPolicy(), c.retries), ctx)
	return backoff.Retry(attempt, policy)
}

// CheckAPI verifies the API is reachable and the token accepted.
func (c *Client) CheckAPI(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	return c.do(ctx, "GET", "/api/", nil, &out)
}

// States fetches the state of every entity.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	err := c.do(ctx, "GET", "/api/states", nil, &states)
	return states, err
}

// State fetches a single entity. ErrNotFound if the entity does not exist.
func (c *Client) State(ctx context.Context, entityID string) (*State, error) {
	state := &State{}
	err := c.do(ctx, "GET", "/api/states/"+entityID, nil, state)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetState writes an entity state directly, without calling a service.
func (c *Client) SetState(ctx context.Context, entityID, state string, attributes map[string]interface{}) (*State, error) {
	body := map[string]interface{}{"state": state}
	if attributes != nil {
		body["attributes"] = attributes
	}
	updated := &State{}
	err := c.do(ctx, "POST", "/api/states/"+entityID, body, updated)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CallService invokes a domain service, eg ("light", "turn_on",
// {"entity_id": "light.kitchen", "brightness": 128}). Returns the states
// the call changed.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]interface{}) ([]State, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	var changed []State
	err := c.do(ctx, "POST", fmt.Sprintf("/api/services/%s/%s", domain, service), data, &changed)
	return changed, err
}

func (c *Client) TurnOn(ctx context.Context, entityID string) error {
	_, err := c.CallService(ctx, Domain(entityID), "turn_on", map[string]interface{}{"entity_id": entityID})
	return err
}

func (c *Client) TurnOff(ctx context.Context, entityID string) error {
	_, err := c.CallService(ctx, Domain(entityID), "turn_off", map[string]interface{}{"entity_id": entityID})
	return err
}

// Converse sends free text to the Assist conversation agent and returns its
// spoken answer.
func (c *Client) Converse(ctx context.Context, text, lang string) (string, error) {
	if lang == "" {
		lang = "en"
	}
	body := map[string]string{"text": text, "language": lang}
	var out struct {
		Response struct {
			Speech struct {
				Plain struct {
					Speech string `json:"speech"`
				} `json:"plain"`
			} `json:"speech"`
		} `json:"response"`
	}
	err := c.do(ctx, "POST", "/api/conversation/process", body, &out)
	return out.Response.Speech.Plain.Speech, err
}
