package server

import (
	"sync"

	"dimfilter/binding"

	channerics "github.com/niceyeti/channerics/channels"
)

// planHub fans the controller's plans out to every connected page. Plans are idempotent, so
// each subscriber holds at most the latest one.
type planHub struct {
	mu     sync.Mutex
	latest binding.RenderPlan
	subs   map[chan binding.RenderPlan]struct{}
}

func newPlanHub(done <-chan struct{}, plans <-chan binding.RenderPlan) *planHub {
	hub := &planHub{
		subs: map[chan binding.RenderPlan]struct{}{},
	}
	go func() {
		defer hub.closeAll()
		for plan := range channerics.OrDone(done, plans) {
			hub.publish(plan)
		}
	}()
	return hub
}

// Latest returns the last plan published, or a Loading plan before the first.
func (hub *planHub) Latest() binding.RenderPlan {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return hub.latest
}

// Subscribe returns a channel primed with the latest plan, and a func to unsubscribe.
func (hub *planHub) Subscribe() (<-chan binding.RenderPlan, func()) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	sub := make(chan binding.RenderPlan, 1)
	sub <- hub.latest
	hub.subs[sub] = struct{}{}

	return sub, func() {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		if _, ok := hub.subs[sub]; ok {
			delete(hub.subs, sub)
			close(sub)
		}
	}
}

func (hub *planHub) publish(plan binding.RenderPlan) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.latest = plan
	for sub := range hub.subs {
		select {
		case <-sub:
		default:
		}
		sub <- plan
	}
}

func (hub *planHub) closeAll() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.subs {
		delete(hub.subs, sub)
		close(sub)
	}
}
