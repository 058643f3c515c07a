package client

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/nimbic-io/otahub/internal/adminadapter"
	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/pkg/options"
)

func newTestAdminServer(t *testing.T, addr string) (*adminadapter.Server, chan broker.Event) {
	t.Helper()
	opts := options.NewAdminOptions()
	opts.Addr = addr
	opts.APIKey = "secret"
	opts.WriteTimeout = time.Second

	out := make(chan broker.Event, 8)
	srv := adminadapter.New(opts, out, logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	return srv, out
}

func TestDialRejectsWrongAPIKey(t *testing.T) {
	newTestAdminServer(t, "127.0.0.1:18781")

	if _, err := Dial("127.0.0.1:18781", "/socket", "wrong-key", time.Second); err == nil {
		t.Fatal("expected Dial to fail with the wrong api key")
	}
}

func TestListGroupsDecodesInjectedResponse(t *testing.T) {
	srv, _ := newTestAdminServer(t, "127.0.0.1:18782")

	c, err := Dial("127.0.0.1:18782", "/socket", "secret", time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		srv.Inbox() <- broker.OtaUpdateGroupListResponse{Groups: []string{"fleet-a", "fleet-b"}}
	}()

	resp, err := c.ListGroups(2 * time.Second)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(resp.Groups) != 2 || resp.Groups[0] != "fleet-a" {
		t.Fatalf("unexpected groups: %+v", resp.Groups)
	}
}

func TestRemoveOtaDecodesAck(t *testing.T) {
	srv, _ := newTestAdminServer(t, "127.0.0.1:18783")

	c, err := Dial("127.0.0.1:18783", "/socket", "secret", time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		srv.Inbox() <- broker.AckEvent{Op: "RemoveOta", OK: true}
	}()

	ack, err := c.RemoveOta("1.0.0-0-abcd1234", 2*time.Second)
	if err != nil {
		t.Fatalf("RemoveOta: %v", err)
	}
	if !ack.OK {
		t.Fatalf("expected ack.OK, got %+v", ack)
	}
}
