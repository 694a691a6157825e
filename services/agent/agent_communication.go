package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type AgentCommunication struct {
	Endpoint string
	Type     string // tcp or unix

	SocketPath string
	HostPort   string
	BaseURL    string

	Token string // bearer token

	client *http.Client
}

// NewAgentCommunicationFromEnv loads and parses AGENT_ENDPOINT and TOKEN.
func NewAgentCommunicationFromEnv() (*AgentCommunication, error) {
	endpoint := strings.TrimSpace(os.Getenv("AGENT_ENDPOINT"))
	if endpoint == "" {
		return nil, errors.New("AGENT_ENDPOINT is not set")
	}

	token := strings.TrimSpace(os.Getenv("TOKEN"))
	if token == "" {
		return nil, errors.New("TOKEN is not set")
	}

	ac, err := NewAgentCommunication(endpoint)
	if err != nil {
		return nil, err
	}

	ac.Token = token
	return ac, nil
}

// NewAgentCommunication parses an endpoint like:
//
//	unix:///var/run/agent.sock
//	tcp://example.com:8080
func NewAgentCommunication(endpoint string) (*AgentCommunication, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid AGENT_ENDPOINT %q: %w", endpoint, err)
	}

	ac := &AgentCommunication{Endpoint: endpoint}

	switch strings.ToLower(u.Scheme) {
	case "unix":
		// url.Parse treats unix:///path as Path="/path"
		if u.Path == "" {
			return nil, fmt.Errorf("unix endpoint missing socket path: %q", endpoint)
		}
		ac.Type = "unix"
		ac.SocketPath = u.Path

		// The transport ignores the host for unix sockets, but net/http needs one.
		ac.BaseURL = "http://agent"

	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("tcp endpoint missing host:port: %q", endpoint)
		}
		ac.Type = "tcp"
		ac.HostPort = u.Host
		ac.BaseURL = "http://" + u.Host

	default:
		return nil, fmt.Errorf("unsupported AGENT_ENDPOINT scheme %q (use unix:// or tcp://)", u.Scheme)
	}

	return ac, nil
}

// Client returns the *http.Client for the agent's transport, plus the BaseURL
// to use for requests. The client is built once.
func (a *AgentCommunication) Client() (*http.Client, string, error) {
	if a.client != nil {
		return a.client, a.BaseURL, nil
	}

	switch a.Type {
	case "tcp":
		a.client = &http.Client{
			Timeout: 60 * time.Second,
		}

	case "unix":
		dialer := &net.Dialer{Timeout: 10 * time.Second}

		tr := &http.Transport{
			// ignore the addr and always dial the unix socket path
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", a.SocketPath)
			},
		}

		a.client = &http.Client{
			Transport: tr,
			Timeout:   60 * time.Second,
		}

	default:
		return nil, "", fmt.Errorf("invalid agent communication type %q", a.Type)
	}

	return a.client, a.BaseURL, nil
}

func (a *AgentCommunication) NewRequest(
	ctx context.Context,
	method string,
	path string,
	body io.Reader,
) (*http.Request, error) {

	req, err := http.NewRequestWithContext(
		ctx,
		method,
		a.BaseURL+path,
		body,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+a.Token)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// StatusError is a non-expected HTTP status from the agent.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Code, e.Body)
}

func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// do sends in as JSON (when non-nil), expects status want and decodes the
// response into out (when non-nil).
func (a *AgentCommunication) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	in any,
	want int,
	out any,
) error {

	client, _, err := a.Client()
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := a.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
