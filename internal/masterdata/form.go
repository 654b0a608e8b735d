package masterdata

import (
	"context"

	"github.com/pcr-hr/hr-portal/internal/backend"
)

// FormView is a snapshot of the create/edit dialog.
type FormView[P any] struct {
	Open      bool
	EditingID string
	Value     P
	Pending   bool
}

// OpenCreate opens the dialog with the default form.
func (c *Controller[T, P]) OpenCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = formState[P]{open: true, value: c.def.DefaultForm}
}

// OpenEdit opens the dialog pre-filled from row.
func (c *Controller[T, P]) OpenEdit(row T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.def.DefaultForm
	if c.def.FormFromEntity != nil {
		value = c.def.FormFromEntity(row)
	}
	c.form = formState[P]{open: true, editingID: c.def.GetRowID(row), value: value}
}

// OpenEditByID opens the dialog for a row known only by id.
func (c *Controller[T, P]) OpenEditByID(id string, value P) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = formState[P]{open: true, editingID: id, value: value}
}

// Form returns the dialog state.
func (c *Controller[T, P]) Form() FormView[P] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FormView[P]{Open: c.form.open, EditingID: c.form.editingID, Value: c.form.value, Pending: c.form.pending}
}

// SetForm replaces the form value.
func (c *Controller[T, P]) SetForm(value P) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.value = value
}

// CloseForm closes the dialog and resets it.
func (c *Controller[T, P]) CloseForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.pending {
		c.form.open = false
		return
	}
	c.form = formState[P]{value: c.def.DefaultForm}
}

// Submit creates or updates depending on whether a row is being edited.
// Invalid input never reaches the network. On failure the dialog stays open
// with the submitted value.
func (c *Controller[T, P]) Submit(ctx context.Context, value P) (T, error) {
	var zero T
	if err := backend.Validate(value); err != nil {
		c.mu.Lock()
		c.form.value = value
		c.mu.Unlock()
		c.notifier.Notify(LevelError, err.Error())
		return zero, err
	}

	c.mu.Lock()
	if c.form.pending {
		c.mu.Unlock()
		return zero, ErrMutationPending
	}
	c.form.pending = true
	c.form.value = value
	editingID := c.form.editingID
	c.mu.Unlock()

	var (
		saved T
		err   error
	)
	if editingID == "" {
		saved, err = c.src.Create(ctx, value)
	} else {
		saved, err = c.src.Update(ctx, editingID, value)
	}

	c.mu.Lock()
	c.form.pending = false
	if err != nil {
		c.mu.Unlock()
		c.notifier.Notify(LevelError, err.Error())
		return zero, err
	}
	c.form = formState[P]{value: c.def.DefaultForm}
	c.mu.Unlock()

	c.notifier.Notify(LevelSuccess, c.def.Name+" tersimpan.")
	c.invalidate(ctx)
	return saved, nil
}
