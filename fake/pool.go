// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"

	"github.com/momentics/hioload-mux/api"
)

// Pool runs every job inline on the submitting goroutine and records it.
type Pool struct {
	mu     sync.Mutex
	jobs   int
	closed bool
	err    error
}

var _ api.Pool = (*Pool)(nil)

// FailWith makes subsequent AddJob calls return err without running the job.
func (p *Pool) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *Pool) AddJob(work api.Task, arg any) error {
	if work == nil {
		return api.ErrInvalidArgument
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrClosed
	}
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.jobs++
	p.mu.Unlock()
	work(arg)
	return nil
}

// Jobs returns how many jobs ran.
func (p *Pool) Jobs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
