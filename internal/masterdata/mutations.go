package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ConfirmationRequest is a destructive or bulk action waiting for the user.
// Nothing runs until Confirm is called.
type ConfirmationRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ConfirmLabel string `json:"confirm_label"`
	Destructive  bool   `json:"destructive"`

	once    sync.Once
	run     func(ctx context.Context) error
	release func(*ConfirmationRequest)
	err     error
}

// Confirm executes the action once.
func (r *ConfirmationRequest) Confirm(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release(r)
		}
		r.err = r.run(ctx)
	})
	return r.err
}

// Dismiss discards the action.
func (r *ConfirmationRequest) Dismiss() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release(r)
		}
	})
}

// PendingConfirmation returns the request currently awaiting the user.
func (c *Controller[T, P]) PendingConfirmation() *ConfirmationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmation
}

func (c *Controller[T, P]) newConfirmation(title, description, label string, destructive bool, run func(context.Context) error) *ConfirmationRequest {
	req := &ConfirmationRequest{
		Title:        title,
		Description:  description,
		ConfirmLabel: label,
		Destructive:  destructive,
		run:          run,
	}
	req.release = func(r *ConfirmationRequest) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.confirmation == r {
			c.confirmation = nil
		}
	}
	c.mu.Lock()
	previous := c.confirmation
	c.confirmation = req
	c.mu.Unlock()
	if previous != nil {
		previous.Dismiss()
	}
	return req
}

// RequestDelete asks for confirmation before deleting row.
func (c *Controller[T, P]) RequestDelete(row T) *ConfirmationRequest {
	return c.RequestDeleteByID(c.def.GetRowID(row), c.def.label(row))
}

// RequestDeleteByID is RequestDelete for a row known only by id and label.
func (c *Controller[T, P]) RequestDeleteByID(id, label string) *ConfirmationRequest {
	if label == "" {
		label = id
	}
	name := strings.ToLower(c.def.Name)
	return c.newConfirmation(
		fmt.Sprintf("Hapus %s?", name),
		fmt.Sprintf("Data %q akan diarsipkan.", label),
		"Hapus",
		true,
		func(ctx context.Context) error {
			if err := c.src.Remove(ctx, id); err != nil {
				c.notifier.Notify(LevelError, err.Error())
				return err
			}
			c.mu.Lock()
			c.dropSelected(id)
			c.mu.Unlock()
			c.notifier.Notify(LevelSuccess, c.def.Name+" dihapus.")
			c.invalidate(ctx)
			return nil
		},
	)
}

// ToggleStatus flips the active flag of one row. Each row tracks its own
// pending state, so different rows may toggle concurrently.
func (c *Controller[T, P]) ToggleStatus(ctx context.Context, row T, next bool) error {
	if c.def.StatusPayload == nil {
		return ErrStatusUnsupported
	}
	id := c.def.GetRowID(row)
	c.mu.Lock()
	if c.statusPending[id] {
		c.mu.Unlock()
		return ErrMutationPending
	}
	c.statusPending[id] = true
	c.mu.Unlock()

	_, err := c.src.Update(ctx, id, c.def.StatusPayload(row, next))

	c.mu.Lock()
	delete(c.statusPending, id)
	c.mu.Unlock()
	if err != nil {
		c.notifier.Notify(LevelError, err.Error())
		return err
	}
	c.notifier.Notify(LevelSuccess, fmt.Sprintf("Status %s diperbarui.", strings.ToLower(c.def.Name)))
	c.invalidate(ctx)
	return nil
}

// StatusPending reports whether a status toggle for id is in flight.
func (c *Controller[T, P]) StatusPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusPending[id]
}

// Select adds row to the selection.
func (c *Controller[T, P]) Select(row T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.def.GetRowID(row)
	for _, existing := range c.selection {
		if c.def.GetRowID(existing) == id {
			return
		}
	}
	c.selection = append(c.selection, row)
}

// Deselect removes id from the selection.
func (c *Controller[T, P]) Deselect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropSelected(id)
}

// ClearSelection empties the selection.
func (c *Controller[T, P]) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = nil
}

// Selected returns the selected rows in selection order.
func (c *Controller[T, P]) Selected() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.selection...)
}

func (c *Controller[T, P]) dropSelected(id string) {
	kept := c.selection[:0]
	for _, row := range c.selection {
		if c.def.GetRowID(row) != id {
			kept = append(kept, row)
		}
	}
	c.selection = kept
}

// RequestBulkDelete asks for confirmation before deleting every selected row.
func (c *Controller[T, P]) RequestBulkDelete() (*ConfirmationRequest, error) {
	rows := c.Selected()
	if len(rows) == 0 {
		c.notifier.Notify(LevelWarning, fmt.Sprintf("Pilih setidaknya satu %s terlebih dahulu.", strings.ToLower(c.def.Name)))
		return nil, ErrNothingSelected
	}
	name := strings.ToLower(c.def.Name)
	return c.newConfirmation(
		fmt.Sprintf("Hapus %d %s?", len(rows), name),
		"Semua data terpilih akan diarsipkan dan disembunyikan dari daftar.",
		"Hapus",
		true,
		func(ctx context.Context) error {
			return c.runBulk(ctx, rows, c.def.Name+" terhapus.", func(ctx context.Context, row T) error {
				return c.src.Remove(ctx, c.def.GetRowID(row))
			})
		},
	), nil
}

// RequestBulkStatus asks for confirmation before setting the status of
// every selected row.
func (c *Controller[T, P]) RequestBulkStatus(next bool) (*ConfirmationRequest, error) {
	if c.def.StatusPayload == nil {
		return nil, ErrStatusUnsupported
	}
	rows := c.Selected()
	if len(rows) == 0 {
		c.notifier.Notify(LevelWarning, fmt.Sprintf("Pilih setidaknya satu %s terlebih dahulu.", strings.ToLower(c.def.Name)))
		return nil, ErrNothingSelected
	}
	name := strings.ToLower(c.def.Name)
	title, label, done := fmt.Sprintf("Nonaktifkan %d %s?", len(rows), name), "Nonaktifkan", c.def.Name+" dinonaktifkan."
	if next {
		title, label, done = fmt.Sprintf("Aktifkan %d %s?", len(rows), name), "Aktifkan", c.def.Name+" diaktifkan."
	}
	return c.newConfirmation(
		title,
		"Aksi massal ini akan memperbarui status semua data yang dipilih.",
		label,
		false,
		func(ctx context.Context) error {
			return c.runBulk(ctx, rows, done, func(ctx context.Context, row T) error {
				_, err := c.src.Update(ctx, c.def.GetRowID(row), c.def.StatusPayload(row, next))
				return err
			})
		},
	), nil
}

// runBulk fans out fn over rows concurrently. Every member runs even when
// others fail; the selection is cleared and the list invalidated either way.
func (c *Controller[T, P]) runBulk(ctx context.Context, rows []T, successMessage string, fn func(context.Context, T) error) error {
	c.mu.Lock()
	if c.bulkPending {
		c.mu.Unlock()
		return ErrMutationPending
	}
	c.bulkPending = true
	c.mu.Unlock()

	var (
		g        errgroup.Group
		failMu   sync.Mutex
		failures []error
	)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			if err := fn(ctx, row); err != nil {
				failMu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", c.def.label(row), err))
				failMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	c.bulkPending = false
	c.selection = nil
	c.mu.Unlock()
	c.invalidate(ctx)

	if len(failures) > 0 {
		err := errors.Join(failures...)
		c.notifier.Notify(LevelError, fmt.Sprintf("%d dari %d data gagal diproses: %s", len(failures), len(rows), failures[0].Error()))
		return err
	}
	c.notifier.Notify(LevelSuccess, successMessage)
	return nil
}
