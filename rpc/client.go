package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"atlaschain/core"
)

// Client talks to a node's RPC surface. Transport failures and application
// rejections are distinguishable so callers can map them to exit codes.
type Client struct {
	base string
	hc   *http.Client
}

// TransportError marks a failure to reach the node at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError marks a request the node understood and refused.
type ApplicationError struct {
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("node refused request (%d): %s", e.Status, e.Message)
}

func NewClient(nodeAddr string) *Client {
	base := nodeAddr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Submit sends raw proposal content and returns the assigned proposal id.
func (c *Client) Submit(content []byte) (string, error) {
	payload, err := json.Marshal(submitRequest{Content: string(content)})
	if err != nil {
		return "", err
	}
	resp, err := c.hc.Post(c.base+"/submit", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", decodeError(resp)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &TransportError{Err: err}
	}
	return out.ProposalID, nil
}

// Status fetches the node snapshot.
func (c *Client) Status() (core.Status, error) {
	resp, err := c.hc.Get(c.base + "/status")
	if err != nil {
		return core.Status{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Status{}, decodeError(resp)
	}
	var out core.Status
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Status{}, &TransportError{Err: err}
	}
	return out, nil
}

func decodeError(resp *http.Response) error {
	var out errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error == "" {
		out.Error = resp.Status
	}
	return &ApplicationError{Status: resp.StatusCode, Message: out.Error}
}
