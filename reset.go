// Full reset.
package binder

import "context"

// Reset empties every collection in one transaction, then releases every
// rendered page, invokes the wipe hook with the retained keys, and compacts
// the journal down to its header.
func (r *Registry) Reset(ctx context.Context) error {
	r.write.Lock()
	defer r.write.Unlock()

	err := r.store.Update(ctx, func(tx *Tx) error {
		tx.Clear()
		return nil
	})
	if err != nil {
		r.log.Error("reset failed", "error", err)
		return err
	}

	r.finishReset(ctx)
	r.refresh(ctx)
	return nil
}

// finishReset runs the non-transactional part of a reset once the store
// has committed empty collections. Failures here are logged; the committed
// reset stands. Called with r.write held, so no other mutation can land
// between the clearing commit and the wipe.
func (r *Registry) finishReset(ctx context.Context) {
	r.cache.Clear()

	if r.wipe != nil {
		if err := r.wipe(ctx, r.retained); err != nil {
			r.log.Error("storage wipe failed", "error", err)
		}
	}

	if err := r.store.Compact(); err != nil {
		r.log.Error("compacting after reset failed", "error", err)
	}

	r.log.Info("all data cleared", "retained", r.retained)
}
