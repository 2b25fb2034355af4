package app

import "sync"

// Contract groups a binding with its executor and event registry.
type Contract struct {
	Binding  *Binding
	Executor *Executor
	Events   *EventRegistry

	once sync.Once
}

// Disconnect removes every event listener and closes the binding. Idempotent.
func (c *Contract) Disconnect() {
	c.once.Do(func() {
		c.Events.Disconnect()
		c.Binding.Close()
	})
}
