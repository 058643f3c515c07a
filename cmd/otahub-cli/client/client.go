// Package client implements otahub-cli's WebSocket connection to the
// admin control plane described in spec.md §4.4: dial, authenticate via
// the ApiKey header, send one ManagementData command, and read back the
// single response frame it produces. Grounded on
// internal/adminadapter's server-side codec.go, which this package
// mirrors from the client side.
package client

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nimbic-io/otahub/internal/wire"
)

const apiKeyHeader = "ApiKey"

// Client is a single short-lived connection to the admin WebSocket.
// otahub-cli opens one per invocation: dial, send, read, close.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the admin WebSocket at addr/path (addr is a bare
// host:port, e.g. "0.0.0.0:8000") and authenticates with apiKey.
func Dial(addr, path, apiKey string, timeout time.Duration) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: path}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := map[string][]string{apiKeyHeader: {apiKey}}

	conn, resp, err := dialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", u.String(), resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// send CBOR-encodes and writes one ManagementData frame.
func (c *Client) send(md wire.ManagementData) error {
	data, err := wire.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// recv blocks for exactly one binary frame and returns its raw payload.
func (c *Client) recv(timeout time.Duration) ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected response frame type %d", msgType)
	}
	return data, nil
}

// Ack is the decoded form of wire.AckResponse, returned by every
// write command (AddOta, RemoveOta, LinkOta, UnlinkOta).
type Ack struct {
	OK      bool
	Message string
}

func (c *Client) roundTripAck(md wire.ManagementData, timeout time.Duration) (*Ack, error) {
	if err := c.send(md); err != nil {
		return nil, err
	}
	data, err := c.recv(timeout)
	if err != nil {
		return nil, err
	}
	var ack wire.AckResponse
	if err := wire.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("decode ack: %w", err)
	}
	return &Ack{OK: ack.OK, Message: ack.Message}, nil
}

// AddOta uploads a firmware update for the catalog to persist.
func (c *Client) AddOta(update wire.OTAUpdate, timeout time.Duration) (*Ack, error) {
	msg, err := wire.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("encode ota update: %w", err)
	}
	return c.roundTripAck(wire.ManagementData{Cmd: wire.ManagementAddOta, Msg: msg}, timeout)
}

// RemoveOta deletes a previously-added update by its update-id.
func (c *Client) RemoveOta(updateID string, timeout time.Duration) (*Ack, error) {
	return c.roundTripAck(wire.ManagementData{Cmd: wire.ManagementRemoveOta, Msg: []byte(updateID)}, timeout)
}

// LinkOta associates a device and/or group with an image.
func (c *Client) LinkOta(link wire.OtaLink, timeout time.Duration) (*Ack, error) {
	msg, err := wire.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("encode ota link: %w", err)
	}
	return c.roundTripAck(wire.ManagementData{Cmd: wire.ManagementLinkOta, Msg: msg}, timeout)
}

// UnlinkOta removes a device/group/image association.
func (c *Client) UnlinkOta(link wire.OtaLink, timeout time.Duration) (*Ack, error) {
	msg, err := wire.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("encode ota unlink: %w", err)
	}
	return c.roundTripAck(wire.ManagementData{Cmd: wire.ManagementUnlinkOta, Msg: msg}, timeout)
}

// ListImages returns every package currently in the catalog.
func (c *Client) ListImages(timeout time.Duration) (*wire.OtaImageListResponse, error) {
	if err := c.send(wire.ManagementData{Cmd: wire.ManagementGetImageList}); err != nil {
		return nil, err
	}
	data, err := c.recv(timeout)
	if err != nil {
		return nil, err
	}
	var resp wire.OtaImageListResponse
	if err := wire.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode image list: %w", err)
	}
	return &resp, nil
}

// ListGroups returns every device group known to the catalog.
func (c *Client) ListGroups(timeout time.Duration) (*wire.OtaGroupListResponse, error) {
	if err := c.send(wire.ManagementData{Cmd: wire.ManagementGetGroupList}); err != nil {
		return nil, err
	}
	data, err := c.recv(timeout)
	if err != nil {
		return nil, err
	}
	var resp wire.OtaGroupListResponse
	if err := wire.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}
	return &resp, nil
}
