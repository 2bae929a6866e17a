package dialog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_Next(t *testing.T) {
	s := newSequence(100)

	for i := uint32(1); i <= 5; i++ {
		assert.Equal(t, 100+i, s.next())
	}
	assert.Equal(t, uint32(105), s.current())
	assert.Equal(t, uint32(105), s.current())
}

func TestSequence_AcceptRemote(t *testing.T) {
	afterNotify := func(cseq uint32) func() *sequence {
		return func() *sequence {
			s := newSequence(0)
			s.acceptRemote(cseq, "NOTIFY")
			return s
		}
	}

	tests := []struct {
		name       string
		setup      func() *sequence
		cseq       uint32
		method     string
		want       bool
		wantRemote uint32
	}{
		{"first remote request", func() *sequence { return newSequence(0) }, 200, "NOTIFY", true, 200},
		{"increasing", afterNotify(200), 201, "NOTIFY", true, 201},
		{"retransmission", afterNotify(200), 200, "NOTIFY", true, 200},
		{"decreasing", afterNotify(200), 199, "NOTIFY", false, 200},
		{
			name: "ACK with INVITE CSeq",
			setup: func() *sequence {
				s := newSequence(0)
				s.setInvite(10)
				s.acceptRemote(12, "INFO")
				return s
			},
			cseq:       10,
			method:     "ACK",
			want:       true,
			wantRemote: 12,
		},
		{
			name: "ACK with unknown CSeq",
			setup: func() *sequence {
				s := newSequence(0)
				s.setInvite(10)
				s.acceptRemote(12, "INFO")
				return s
			},
			cseq:       11,
			method:     "ACK",
			want:       false,
			wantRemote: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setup()
			assert.Equal(t, tt.want, s.acceptRemote(tt.cseq, tt.method))
			assert.Equal(t, tt.wantRemote, s.remote)
		})
	}
}

func TestSequence_Concurrency(t *testing.T) {
	s := newSequence(0)

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	seen := make(chan uint32, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- s.next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint32]struct{})
	for v := range seen {
		unique[v] = struct{}{}
	}
	assert.Len(t, unique, goroutines*perGoroutine)
	assert.Equal(t, uint32(goroutines*perGoroutine), s.current())
}
