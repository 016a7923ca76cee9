// Package httpclient wraps nsqd's HTTP admin/writer endpoints — the
// supplemented, explicitly non-core convenience layer that sits
// alongside the TCP protocol client (PublishHTTP, CreateTopic,
// DeleteTopic, Pause, Empty), grounded in the teacher's own
// nsq_trigger.go, which posts a message body to nsqd's /put endpoint
// with a plain http.Post rather than the TCP protocol.
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Client is a thin wrapper around one nsqd's HTTP admin address
// ("host:port", no scheme).
type Client struct {
	Addr       string
	HTTPClient *http.Client
}

// New returns a Client against addr using http.DefaultClient.
func New(addr string) *Client {
	return &Client{Addr: addr, HTTPClient: http.DefaultClient}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) post(path string, query url.Values, body io.Reader) error {
	u := fmt.Sprintf("http://%s%s", c.Addr, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.client().Post(u, "text/plain", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nsqc/httpclient: %s %s - %s", path, resp.Status, string(respBody))
	}
	return nil
}

// PublishHTTP posts body to nsqd's /put?topic=topic, the HTTP-publish
// path nsq_trigger.go uses in place of a TCP PUB.
func (c *Client) PublishHTTP(topic string, body []byte) error {
	q := url.Values{"topic": {topic}}
	return c.post("/put", q, bytes.NewReader(body))
}

// CreateTopic creates topic (and, implicitly, its "ephemeral"-eligible
// default channel) via /topic/create.
func (c *Client) CreateTopic(topic string) error {
	q := url.Values{"topic": {topic}}
	return c.post("/topic/create", q, nil)
}

// DeleteTopic permanently removes topic (and all its channels) via
// /topic/delete.
func (c *Client) DeleteTopic(topic string) error {
	q := url.Values{"topic": {topic}}
	return c.post("/topic/delete", q, nil)
}

// Pause pauses topic (no new messages delivered to any of its channels)
// via /topic/pause.
func (c *Client) Pause(topic string) error {
	q := url.Values{"topic": {topic}}
	return c.post("/topic/pause", q, nil)
}

// Empty discards every message currently queued for topic via
// /topic/empty.
func (c *Client) Empty(topic string) error {
	q := url.Values{"topic": {topic}}
	return c.post("/topic/empty", q, nil)
}
