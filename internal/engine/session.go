// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"sync"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
	"github.com/sirupsen/logrus"
)

// session serves one mapping.
//
// The poller goroutine is the only consumer of the submission ring and
// the only producer of the completion ring. It hands requests to workers
// and publishes their results. It admits a request only while fewer than
// the completion ring's capacity are outstanding, so a completion always
// has a slot once the client drains.
type session struct {
	engine  *Engine
	id      uint64
	mapping *acall.Mapping
	log     *logrus.Entry

	sq      *acall.Consumer[acall.RequestEntry]
	cq      *acall.Producer[acall.CompletionEntry]
	jobs    *jobQueue[acall.RequestEntry]
	results *resultQueue[acall.CompletionEntry]

	// Poller-owned.
	outstanding uint32
	limit       uint32
	heldReq     *acall.RequestEntry
	heldRes     *acall.CompletionEntry
	served      uint64

	stopped  atomix.Bool
	stopOnce sync.Once
	done     chan struct{}
	workers  sync.WaitGroup
}

func newSession(e *Engine, id uint64, m *acall.Mapping) (*session, error) {
	sq, err := m.SubmissionConsumer()
	if err != nil {
		return nil, err
	}
	cq, err := m.CompletionProducer()
	if err != nil {
		return nil, err
	}
	limit := uint32(cq.Cap())
	return &session{
		engine:  e,
		id:      id,
		mapping: m,
		log:     e.log.WithField("session", id),
		sq:      sq,
		cq:      cq,
		jobs:    newJobQueue[acall.RequestEntry](int(limit)),
		results: newResultQueue[acall.CompletionEntry](int(limit)),
		limit:   limit,
		done:    make(chan struct{}),
	}, nil
}

// run is the poller loop. It returns after stop.
func (s *session) run() {
	defer s.engine.wg.Done()
	defer close(s.done)

	for range s.engine.cfg.Workers {
		s.workers.Add(1)
		go s.work()
	}
	defer s.workers.Wait()

	backoff := iox.Backoff{}
	for !s.stopped.Load() {
		n := s.publish() + s.admit()
		if n > 0 {
			backoff.Reset()
			continue
		}
		backoff.Wait()
	}
	s.log.WithFields(logrus.Fields{
		"served":      s.served,
		"outstanding": s.outstanding,
	}).Debug("session stopped")
}

// publish moves finished results into the completion ring. A result that
// does not fit is held until the client drains.
func (s *session) publish() int {
	n := 0
	for {
		if s.heldRes == nil {
			c, err := s.results.Dequeue()
			if err != nil {
				return n
			}
			s.heldRes = &c
		}
		if err := s.cq.Enqueue(s.heldRes); err != nil {
			return n
		}
		s.heldRes = nil
		s.outstanding--
		s.served++
		n++
	}
}

// admit consumes requests from the submission ring while the outstanding
// bound allows. A tail outside the ring bounds stops the session.
func (s *session) admit() int {
	n := 0
	for s.outstanding < s.limit {
		if s.heldReq == nil {
			r, err := s.sq.Dequeue()
			if err != nil {
				if !acall.IsWouldBlock(err) {
					s.log.WithError(err).Error("submission ring corrupted, stopping session")
					s.stopped.Store(true)
				}
				return n
			}
			s.heldReq = &r
		}
		if err := s.jobs.Enqueue(s.heldReq); err != nil {
			return n
		}
		s.heldReq = nil
		s.outstanding++
		n++
	}
	return n
}

// work executes requests until the session stops.
func (s *session) work() {
	defer s.workers.Done()
	backoff := iox.Backoff{}
	for !s.stopped.Load() {
		req, err := s.jobs.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()

		c := acall.CompletionEntry{UserData: req.UserData, Res: s.engine.execute(&req)}
		if c.Res < 0 {
			s.log.WithFields(logrus.Fields{
				"op":  req.Opcode,
				"fd":  req.FD,
				"tag": req.UserData,
				"res": acall.Code(c.Res),
			}).Debug("request failed")
		}

		sw := spin.Wait{}
		for s.results.Enqueue(&c) != nil {
			if s.stopped.Load() {
				return
			}
			sw.Once()
		}
	}
}

// stop halts the poller and workers and waits for them.
func (s *session) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
	})
	<-s.done
}
