package ipc

import (
	"encoding/binary"
	"testing"
	"time"

	"sparksched/hal"
	"sparksched/kernel"
)

// bootHost runs setup on a fresh kernel's boot context, then Run. The
// returned func shuts the kernel down.
func bootHost(t *testing.T, setup func(k *kernel.Kernel)) func() {
	t.Helper()
	h := hal.New(hal.Config{})
	done := make(chan struct{})
	ready := make(chan struct{})
	go func() {
		defer close(done)
		k := kernel.New(kernel.Config{}, h.Platform())
		h.OnShutdown(k.Shutdown)
		setup(k)
		close(ready)
		k.Run()
	}()
	<-ready
	return func() {
		h.RequestShutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("kernel did not shut down")
		}
		h.Close()
	}
}

func TestMailboxTryRecvEmpty(t *testing.T) {
	stop := bootHost(t, func(k *kernel.Kernel) {
		mb := New(k, 2)
		if _, ok := mb.TryRecv(); ok {
			t.Error("TryRecv() ok = true, want false")
		}
	})
	stop()
}

func TestMailboxTrySendFull(t *testing.T) {
	stop := bootHost(t, func(k *kernel.Kernel) {
		mb := New(k, 0)
		var msg Message
		for i := 0; i < DefaultSlots; i++ {
			if ok := mb.TrySend(msg); !ok {
				t.Errorf("TrySend() ok = false at slot %d, want true", i)
			}
		}
		if ok := mb.TrySend(msg); ok {
			t.Error("TrySend() ok = true when full, want false")
		}
		if mb.Len() != DefaultSlots {
			t.Errorf("Len() = %d, want %d", mb.Len(), DefaultSlots)
		}
		for i := 0; i < DefaultSlots; i++ {
			got, ok := mb.TryRecv()
			if !ok {
				t.Errorf("TryRecv() ok = false at slot %d, want true", i)
			}
			if got.From != k.IdleThread() {
				t.Errorf("From = %v, want the sending thread", got.From)
			}
		}
	})
	stop()
}

func TestMailboxBlockingProducers(t *testing.T) {
	const (
		producers = 3
		perProd   = 40
		total     = producers * perProd
	)
	seen := make([]bool, total)
	var order [producers][]uint32
	finished := make(chan struct{})

	stop := bootHost(t, func(k *kernel.Kernel) {
		mb := New(k, 4)
		for p := 0; p < producers; p++ {
			k.CreateThread(k.KernelProcess(), func(param any) {
				id := param.(int)
				for i := 0; i < perProd; i++ {
					var buf [8]byte
					binary.LittleEndian.PutUint32(buf[:4], uint32(id))
					binary.LittleEndian.PutUint32(buf[4:], uint32(id*perProd+i))
					msg, err := NewMessage(MsgData, buf[:])
					if err != nil {
						t.Errorf("NewMessage() error = %v", err)
						return
					}
					mb.Send(msg)
				}
			}, kernel.PriorityNormal, "producer", p)
		}
		k.CreateThread(k.KernelProcess(), func(any) {
			defer close(finished)
			for i := 0; i < total; i++ {
				msg := mb.Recv()
				if msg.Len != 8 || msg.Kind != MsgData {
					t.Errorf("Recv() = kind %d len %d, want data/8", msg.Kind, msg.Len)
					return
				}
				from := binary.LittleEndian.Uint32(msg.Payload()[:4])
				id := binary.LittleEndian.Uint32(msg.Payload()[4:])
				if int(id) >= total || seen[id] {
					t.Errorf("Recv() id %d out of range or duplicate", id)
					return
				}
				seen[id] = true
				order[from] = append(order[from], id)
			}
		}, kernel.PriorityNormal, "consumer", nil)
	})

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the mailbox")
	}
	stop()

	for p, ids := range order {
		for i := 1; i < len(ids); i++ {
			if ids[i] <= ids[i-1] {
				t.Fatalf("producer %d messages out of order: %v", p, ids)
			}
		}
	}
}

func TestNewMessageRejectsOversize(t *testing.T) {
	if _, err := NewMessage(MsgData, make([]byte, MaxMessageBytes+1)); err == nil {
		t.Fatal("NewMessage() error = nil for an oversize payload")
	}
	msg, err := NewMessage(MsgPing, []byte("hi"))
	if err != nil || string(msg.Payload()) != "hi" {
		t.Fatalf("NewMessage() = %q, %v", msg.Payload(), err)
	}
}
