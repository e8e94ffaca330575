package workload

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sparksched/hal"
	"sparksched/ipc"
	"sparksched/kernel"
)

func TestRunnerOnHost(t *testing.T) {
	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, nil))

	producer, err := Parse("lock m; spin 20; yield; unlock m; send q ping")
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := Parse("recv q; log got")
	if err != nil {
		t.Fatal(err)
	}

	h := hal.New(hal.Config{})
	done := make(chan struct{}, 2)
	stopped := make(chan struct{})
	var got []string

	go func() {
		defer close(stopped)
		k := kernel.New(kernel.Config{}, h.Platform())
		h.OnShutdown(k.Shutdown)

		objs := NewObjects()
		objs.Semaphores["m"] = k.NewMutex()
		objs.Mailboxes["q"] = ipc.New(k, 1)
		for _, p := range []Program{producer, consumer} {
			if err := p.Check(objs); err != nil {
				t.Errorf("Check() = %v", err)
			}
		}
		r := NewRunner(k, objs, log)
		r.Received = func(thread string, msg ipc.Message) {
			got = append(got, thread+":"+string(msg.Payload()))
		}
		for _, spec := range []struct {
			name string
			prog Program
		}{{"p", producer}, {"c", consumer}} {
			entry := r.Entry(spec.name, spec.prog, 3)
			k.CreateThread(k.KernelProcess(), func(param any) {
				entry(param)
				done <- struct{}{}
			}, kernel.PriorityNormal, spec.name, nil)
		}
		k.Run()
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("workload threads did not finish")
		}
	}
	h.RequestShutdown()
	<-stopped
	h.Close()

	if len(got) != 3 {
		t.Fatalf("received %v, want 3 messages", got)
	}
	for _, m := range got {
		if m != "c:ping" {
			t.Fatalf("received %q, want c:ping", m)
		}
	}
	if n := strings.Count(logBuf.String(), "msg=got"); n != 3 {
		t.Fatalf("log lines = %d, want 3:\n%s", n, logBuf.String())
	}
}
