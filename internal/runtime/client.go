package runtime

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moby/moby/client"
)

// Client wraps the moby API client used to talk to the container runtime.
type Client struct {
	api *client.Client
}

// NewClient creates a runtime client connected to the given Docker host
// (a unix socket path or a tcp://host:port endpoint).
func NewClient(dockerHost string) (*Client, error) {
	var opts []client.Opt

	switch {
	case strings.HasPrefix(dockerHost, "tcp://"), strings.HasPrefix(dockerHost, "tcps://"):
		opts = append(opts, client.WithHost(dockerHost))
	case strings.HasPrefix(dockerHost, "unix://"):
		sock := strings.TrimPrefix(dockerHost, "unix://")
		opts = append(opts,
			client.WithHost(dockerHost),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", sock, 30*time.Second)
					},
				},
			}),
		)
	default:
		opts = append(opts, client.WithHost("unix://"+dockerHost))
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Ping checks that the runtime daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	return err
}

// Close releases the underlying client resources.
func (c *Client) Close() error {
	return c.api.Close()
}
