package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the public Figma REST endpoint.
	DefaultAPIURL = "https://api.figma.com"

	// DefaultImageScale renders frames at 2x for legible text.
	DefaultImageScale = 2

	defaultHTTPTimeout = 60 * time.Second
)

// Client is a thin wrapper over the Figma REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Figma API client. An empty baseURL uses DefaultAPIURL.
func NewClient(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("figma token required")
	}
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

type nodesResponse struct {
	Name  string `json:"name"`
	Nodes map[string]*struct {
		Document *Node `json:"document"`
	} `json:"nodes"`
}

type imagesResponse struct {
	Err    *string           `json:"err"`
	Images map[string]string `json:"images"`
}

// FetchDocument loads the whole file, or only the subtree of nodeID when set.
// Subtree responses are wrapped in a synthetic page so discovery can treat both alike.
func (c *Client) FetchDocument(ctx context.Context, fileKey, nodeID string) (*Document, error) {
	if fileKey == "" {
		return nil, fmt.Errorf("fetch document: %w: empty file key", ErrInvalidSourceURL)
	}

	if nodeID == "" {
		var doc Document
		if err := c.get(ctx, "/v1/files/"+url.PathEscape(fileKey), nil, &doc); err != nil {
			return nil, fmt.Errorf("fetch document: %w", err)
		}
		return &doc, nil
	}

	var resp nodesResponse
	q := url.Values{"ids": {nodeID}}
	if err := c.get(ctx, "/v1/files/"+url.PathEscape(fileKey)+"/nodes", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch node %s: %w", nodeID, err)
	}

	page := &Node{Type: NodeTypeCanvas}
	if n, ok := resp.Nodes[nodeID]; ok && n != nil && n.Document != nil {
		page.Children = append(page.Children, n.Document)
	}
	return &Document{
		Name:     resp.Name,
		Document: &Node{ID: "0:0", Type: "DOCUMENT", Children: []*Node{page}},
	}, nil
}

// RenderImages requests PNG renders for ids and returns id -> image URL.
// Ids the API could not render are absent from the map.
func (c *Client) RenderImages(ctx context.Context, fileKey string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	q := url.Values{
		"ids":    {strings.Join(ids, ",")},
		"format": {"png"},
		"scale":  {fmt.Sprint(DefaultImageScale)},
	}

	var resp imagesResponse
	if err := c.get(ctx, "/v1/images/"+url.PathEscape(fileKey), q, &resp); err != nil {
		return nil, fmt.Errorf("render images: %w", err)
	}
	if resp.Err != nil && *resp.Err != "" {
		return nil, fmt.Errorf("render images: %s", *resp.Err)
	}

	out := make(map[string]string, len(resp.Images))
	for id, u := range resp.Images {
		if strings.TrimSpace(u) != "" {
			out[id] = u
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Figma-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
