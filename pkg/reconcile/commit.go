package reconcile

import "sync"

// Commit tracks one asynchronous remote write started by an optimistic
// operation. Callers that only care about the optimistic effect can drop it;
// tests and CLI flows wait on Done.
type Commit struct {
	done chan struct{}

	mu         sync.Mutex
	err        error
	rolledBack bool
}

func newCommit() *Commit {
	return &Commit{done: make(chan struct{})}
}

// Done is closed when the remote write has settled, after any rollback or
// reconciliation has been applied to the store.
func (c *Commit) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the commit settles and returns its error.
func (c *Commit) Wait() error {
	<-c.done
	return c.Err()
}

// Err returns the commit's error, nil until settled or on success. Swallowed
// conflicts report nil: the desired end state was already reached.
func (c *Commit) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RolledBack reports whether the optimistic change was reverted.
func (c *Commit) RolledBack() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rolledBack
}

func (c *Commit) settle(err error, rolledBack bool) {
	c.mu.Lock()
	c.err = err
	c.rolledBack = rolledBack
	c.mu.Unlock()
	close(c.done)
}
