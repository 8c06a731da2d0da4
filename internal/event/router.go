// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sapcc/capsule-operator/internal/metrics"
)

type Handler func(ctx context.Context, ev Event) Result

// StartupHook runs once before the first event is handled.
type StartupHook func(ctx context.Context) error

// Router dispatches events one at a time to the registered handlers.
type Router struct {
	mu       sync.Mutex
	handlers map[string]Handler
	startup  []StartupHook
	started  bool
}

func NewRouter() *Router {
	return &Router{handlers: map[string]Handler{}}
}

func (r *Router) Register(t Type, handler Handler) error {
	if t == Action {
		return errors.New("actions are registered with RegisterAction")
	}
	return r.register(string(t), handler)
}

func (r *Router) RegisterAction(name string, handler Handler) error {
	return r.register(Event{Type: Action, Action: name}.Name(), handler)
}

func (r *Router) register(key string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("handler for %s already registered", key)
	}
	r.handlers[key] = handler
	return nil
}

func (r *Router) OnStartup(hook StartupHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startup = append(r.startup, hook)
}

// Dispatch runs the handler registered for ev. Calls are serialized; an event
// without a handler fails.
func (r *Router) Dispatch(ctx context.Context, ev Event) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := log.FromContext(ctx).WithValues("event", ev.Name())
	ctx = log.IntoContext(ctx, logger)

	result := r.dispatch(ctx, ev)
	metrics.RecordEvent(ev.Name(), result.Outcome.String())

	if result.Outcome == Failure {
		logger.Info("event failed", "message", result.Message)
	} else {
		logger.Info("event handled")
	}
	return result
}

func (r *Router) dispatch(ctx context.Context, ev Event) Result {
	if !r.started {
		for _, hook := range r.startup {
			if err := hook(ctx); err != nil {
				log.FromContext(ctx).Error(err, "startup hook failed")
				return Failed("startup failed")
			}
		}
		r.started = true
	}

	handler, ok := r.handlers[ev.Name()]
	if !ok {
		return Failed(fmt.Sprintf("unknown event %s", ev.Name()))
	}
	return handler(ctx, ev)
}
