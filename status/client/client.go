// Package client queries a nodes admin status API.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	fspath "path"
	"time"

	"github.com/andydunstall/glomers/node/registry"
)

type Client struct {
	httpClient *http.Client

	url *url.URL
}

func NewClient(url *url.URL) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 15,
		},
		url: url,
	}
}

// RegistrySummary returns a summary of the registry.
func (c *Client) RegistrySummary() (*registry.Summary, error) {
	r, err := c.request("/status/registry/summary")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var summary registry.Summary
	if err := json.NewDecoder(r).Decode(&summary); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &summary, nil
}

// RegistryNodes returns the status of every node in the registry.
func (c *Client) RegistryNodes() ([]*registry.NodeStatus, error) {
	r, err := c.request("/status/registry/nodes")
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var nodes []*registry.NodeStatus
	if err := json.NewDecoder(r).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return nodes, nil
}

// RegistryNode returns the status of the node with the given ID.
func (c *Client) RegistryNode(nodeID string) (*registry.NodeStatus, error) {
	r, err := c.request("/status/registry/nodes/" + nodeID)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var node registry.NodeStatus
	if err := json.NewDecoder(r).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &node, nil
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) request(path string) (io.ReadCloser, error) {
	url := new(url.URL)
	*url = *c.url

	url.Path = fspath.Join(url.Path, path)

	req, err := http.NewRequest(http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, fmt.Errorf("request: bad status: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
