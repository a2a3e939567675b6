package main

import (
	"fmt"

	"github.com/cuemby/idbstore/pkg/event"
	"github.com/cuemby/idbstore/pkg/engine"
)

// session owns the single event.Scheduler idbctl drains after every
// request: the engine defers all work onto it rather than blocking the
// calling goroutine, so a CLI invocation settles its one request by
// running the scheduler to completion and reading back the result.
type session struct {
	sched   *event.Scheduler
	factory *engine.Factory
}

func newSession() (*session, error) {
	sched := event.NewScheduler()
	factory, err := engine.NewFactory(cfg.StoragePath, sched)
	if err != nil {
		return nil, fmt.Errorf("open storage path %q: %w", cfg.StoragePath, err)
	}
	return &session{sched: sched, factory: factory}, nil
}

func (s *session) close() error { return s.factory.Close() }

// await drains every pending task and microtask the request's
// submission scheduled, then returns its settled result.
func (s *session) await(req *event.Request) (any, error) {
	s.sched.RunAll()
	return req.Result, req.Err
}

func (s *session) openDatabase(name string, version *uint64) (*engine.Connection, error) {
	req := s.factory.Open(name, version)
	result, err := s.await(req)
	if err != nil {
		return nil, err
	}
	return result.(*engine.Connection), nil
}
