package client

import "context"

// Committer is the interface that wraps the Commit method.
type Committer interface {
	Commit(context.Context, *Tx) error
}

// CommitFunc is an adapter to allow the use of ordinary function as Committer.
type CommitFunc func(context.Context, *Tx) error

// Commit calls f(ctx, tx).
func (f CommitFunc) Commit(ctx context.Context, tx *Tx) error { return f(ctx, tx) }

// CommitHook defines the "commit middleware". A function that gets a Committer
// and returns a Committer. For example:
//
//	hook := func(next client.Committer) client.Committer {
//		return client.CommitFunc(func(ctx context.Context, tx *client.Tx) error {
//			// Do something before.
//			if err := next.Commit(ctx, tx); err != nil {
//				return err
//			}
//			// Do something after.
//			return nil
//		})
//	}
type CommitHook func(Committer) Committer

// Rollbacker is the interface that wraps the Rollback method.
type Rollbacker interface {
	Rollback(context.Context, *Tx) error
}

// RollbackFunc is an adapter to allow the use of ordinary function as Rollbacker.
type RollbackFunc func(context.Context, *Tx) error

// Rollback calls f(ctx, tx).
func (f RollbackFunc) Rollback(ctx context.Context, tx *Tx) error { return f(ctx, tx) }

// RollbackHook defines the "rollback middleware", the Rollbacker
// counterpart of CommitHook.
type RollbackHook func(Rollbacker) Rollbacker

// OnCommit adds a hook to call on commit.
func (tx *Tx) OnCommit(f CommitHook) {
	tx.hmu.Lock()
	defer tx.hmu.Unlock()
	tx.onCommit = append(tx.onCommit, f)
}

// OnRollback adds a hook to call on rollback, including rollbacks issued by
// the client after a cancelled operation or on Close.
func (tx *Tx) OnRollback(f RollbackHook) {
	tx.hmu.Lock()
	defer tx.hmu.Unlock()
	tx.onRollback = append(tx.onRollback, f)
}

func (tx *Tx) committer(base Committer) Committer {
	tx.hmu.Lock()
	hooks := append([]CommitHook(nil), tx.onCommit...)
	tx.hmu.Unlock()
	fn := base
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	return fn
}

func (tx *Tx) rollbacker(base Rollbacker) Rollbacker {
	tx.hmu.Lock()
	hooks := append([]RollbackHook(nil), tx.onRollback...)
	tx.hmu.Unlock()
	fn := base
	for i := len(hooks) - 1; i >= 0; i-- {
		fn = hooks[i](fn)
	}
	return fn
}
