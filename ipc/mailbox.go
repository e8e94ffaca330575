// Package ipc provides a bounded blocking mailbox for kernel threads, built only
// on kernel semaphores.
package ipc

import (
	"fmt"

	"sparksched/kernel"
)

// MaxMessageBytes is the maximum payload size for IPC messages.
const MaxMessageBytes = 256

// DefaultSlots is the mailbox capacity when none is given.
const DefaultSlots = 8

// Message is a fixed-size message envelope.
type Message struct {
	From kernel.ThreadHandle
	Kind uint8
	Len  uint16
	Data [MaxMessageBytes]byte
}

const (
	MsgData uint8 = iota + 1
	MsgPing
	MsgPong
)

// NewMessage builds a message carrying payload, which must fit in
// MaxMessageBytes.
func NewMessage(kind uint8, payload []byte) (Message, error) {
	var msg Message
	if len(payload) > MaxMessageBytes {
		return msg, fmt.Errorf("ipc: payload of %d bytes exceeds %d", len(payload), MaxMessageBytes)
	}
	msg.Kind = kind
	msg.Len = uint16(copy(msg.Data[:], payload))
	return msg, nil
}

// Payload returns the used part of Data.
func (m *Message) Payload() []byte { return m.Data[:m.Len] }

// Mailbox is a fixed-size multi-producer, multi-consumer queue. Senders
// block while it is full and receivers while it is empty.
//
// free counts taken slots; used starts fully held and each send releases one
// hold, so a receiver's Acquire succeeds once per message.
type Mailbox struct {
	k     *kernel.Kernel
	free  *kernel.Semaphore
	used  *kernel.Semaphore
	head  uint32
	tail  uint32
	slots []Message
}

// New creates a mailbox with room for slots messages. Zero means
// DefaultSlots.
func New(k *kernel.Kernel, slots int) *Mailbox {
	if slots <= 0 {
		slots = DefaultSlots
	}
	return &Mailbox{
		k:     k,
		free:  k.NewSemaphore(slots),
		used:  k.NewSemaphoreCount(slots, slots),
		slots: make([]Message, slots),
	}
}

// Cap returns the number of slots.
func (mb *Mailbox) Cap() int { return len(mb.slots) }

// Len returns the number of queued messages.
func (mb *Mailbox) Len() int {
	mb.k.Lock()
	n := int(mb.head - mb.tail)
	mb.k.Unlock()
	return n
}

// Send enqueues a message, blocking the active thread while the mailbox is
// full.
func (mb *Mailbox) Send(msg Message) {
	mb.free.Acquire()
	mb.put(msg)
}

// TrySend enqueues a message unless the mailbox is full.
func (mb *Mailbox) TrySend(msg Message) bool {
	if !mb.free.TryAcquire() {
		return false
	}
	mb.put(msg)
	return true
}

// Recv dequeues one message, blocking the active thread while the mailbox is
// empty.
func (mb *Mailbox) Recv() Message {
	mb.used.Acquire()
	return mb.take()
}

// TryRecv dequeues one message unless the mailbox is empty.
func (mb *Mailbox) TryRecv() (Message, bool) {
	if !mb.used.TryAcquire() {
		return Message{}, false
	}
	return mb.take(), true
}

func (mb *Mailbox) put(msg Message) {
	k := mb.k
	k.Lock()
	if !msg.From.Valid() {
		msg.From = k.ActiveThread()
	}
	mb.slots[mb.head%uint32(len(mb.slots))] = msg
	mb.head++
	k.Unlock()
	mb.used.Release()
}

func (mb *Mailbox) take() Message {
	k := mb.k
	k.Lock()
	msg := mb.slots[mb.tail%uint32(len(mb.slots))]
	mb.tail++
	k.Unlock()
	mb.free.Release()
	return msg
}
