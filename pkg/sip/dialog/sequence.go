package dialog

import (
	"sync"

	"github.com/emiago/sipgo/sip"
)

// sequence счетчики CSeq одного диалога.
//
// RFC 3261 8.1.1.5 и 12.2.2: локальный номер растет с каждым новым запросом,
// удаленный не должен уменьшаться, ретрансмиссия приходит с тем же номером.
// ACK использует номер INVITE.
type sequence struct {
	mu     sync.Mutex
	local  uint32
	remote uint32
	invite uint32
}

// newSequence первый запрос получит initial+1
func newSequence(initial uint32) *sequence {
	return &sequence{local: initial}
}

func (s *sequence) next() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local++
	return s.local
}

func (s *sequence) current() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// acceptRemote запоминает номер входящего запроса, если он допустим
func (s *sequence) acceptRemote(cseq uint32, method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.remote == 0:
		s.remote = cseq
		return true
	case method == sip.ACK.String():
		return cseq == s.invite || cseq == s.remote
	case cseq < s.remote:
		return false
	}
	s.remote = cseq
	return true
}

func (s *sequence) setInvite(cseq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invite = cseq
}

func (s *sequence) inviteCSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invite
}
