package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req any, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Mark queues flag for key on every listed article.
func (c *Client) Mark(articleIDs []string, key string, flag bool) (*MarkResponse, error) {
	var resp MarkResponse
	if err := c.call("Mark", MarkRequest{ArticleIDs: articleIDs, Key: key, Flag: flag}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discard drops the pending record for (articleID, key).
func (c *Client) Discard(articleID, key string) (*DiscardResponse, error) {
	var resp DiscardResponse
	if err := c.call("Discard", DiscardRequest{ArticleID: articleID, Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pending returns the record total and, when key is set, the pending article ids for it.
func (c *Client) Pending(key string) (*PendingResponse, error) {
	var resp PendingResponse
	if err := c.call("Pending", PendingRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns queued records optionally filtered by state.
func (c *Client) List(states []string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{States: states}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync runs one sync cycle in the daemon.
func (c *Client) Sync() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call("Sync", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseClaims returns claimed records to pending.
func (c *Client) ReleaseClaims() (*ReleaseClaimsResponse, error) {
	var resp ReleaseClaimsResponse
	if err := c.call("ReleaseClaims", ReleaseClaimsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.call("DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
