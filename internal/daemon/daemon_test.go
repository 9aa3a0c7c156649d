package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/vetohq/veto/internal/decision"
	"github.com/vetohq/veto/internal/policy"
)

func TestDaemonServesConcurrentRequests(t *testing.T) {
	set := &policy.Set{
		Policies: []policy.Policy{
			{CommandRules: []policy.CommandRule{{Block: []string{"rm -rf*"}, Reason: "no recursive deletes"}}},
		},
	}
	d := New(decision.NewEngine(set))
	if err := d.Listen(""); err != nil {
		t.Fatal(err)
	}
	go d.Serve()
	defer d.Shutdown(contextWithTimeout())

	addr := d.Addr().String()

	result := make(chan bool, 2)
	for _, cmd := range []string{"rm -rf /tmp/x", "ls -la"} {
		go func(cmd string) {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Error(err)
				result <- false
				return
			}
			defer conn.Close()

			req, _ := json.Marshal(Request{Action: "execute", Command: cmd})
			conn.Write(append(req, '\n'))

			scanner := bufio.NewScanner(conn)
			scanner.Scan()
			var resp Response
			json.Unmarshal(scanner.Bytes(), &resp)
			result <- resp.Allowed
		}(cmd)
	}

	r1, r2 := <-result, <-result
	if r1 == r2 {
		t.Fatalf("expected one allowed and one denied, got %v %v", r1, r2)
	}
}

func TestDaemonMalformedRequest(t *testing.T) {
	d := New(decision.NewEngine(&policy.Set{}))
	if err := d.Listen(""); err != nil {
		t.Fatal(err)
	}
	go d.Serve()
	defer d.Shutdown(contextWithTimeout())

	conn, err := net.Dial("tcp", d.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte("not json\n"))
	scanner := bufio.NewScanner(conn)
	scanner.Scan()
	var resp Response
	json.Unmarshal(scanner.Bytes(), &resp)
	if resp.Allowed || resp.Reason != "bad request" {
		t.Fatalf("expected bad-request response, got %+v", resp)
	}
}

func contextWithTimeout() context.Context {
	ctx, _ := context.WithTimeout(context.Background(), 2*time.Second)
	return ctx
}
