/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

var (
	// ErrHasStock blocks deleting an address that still holds inventory.
	ErrHasStock = errors.New("address holds stock")
	// ErrDeleteCancelled is returned when the confirmation was declined.
	ErrDeleteCancelled = errors.New("delete cancelled")
	// ErrShapeGone is returned by CommitDelete when the shape was removed meanwhile.
	ErrShapeGone = errors.New("shape no longer exists")
	// ErrNoStockChecker is returned when a labeled lot must be checked but no checker is set.
	ErrNoStockChecker = errors.New("no stock checker configured")
)

// StockChecker asks the inventory side whether a label holds stock.
type StockChecker interface {
	HasStock(ctx context.Context, label string) (bool, error)
}

// StockCheckerFunc adapts a function to StockChecker.
type StockCheckerFunc func(ctx context.Context, label string) (bool, error)

func (f StockCheckerFunc) HasStock(ctx context.Context, label string) (bool, error) {
	return f(ctx, label)
}

// DeleteRequest is a pending delete. It carries a copy of the shape so the stock check
// can run without touching the controller.
type DeleteRequest struct {
	UID   uint64
	Shape domain.Shape
}

// NeedsStockCheck reports whether the shape is a labeled lot.
func (r DeleteRequest) NeedsStockCheck() bool { return r.Shape.IsAddress() }

// Check runs the stock check. It is safe to call from any goroutine.
func (r DeleteRequest) Check(ctx context.Context, sc StockChecker) error {
	if !r.NeedsStockCheck() {
		return nil
	}
	if sc == nil {
		return ErrNoStockChecker
	}
	has, err := sc.HasStock(ctx, r.Shape.Label)
	if err != nil {
		return fmt.Errorf("stock check for %q: %w", r.Shape.Label, err)
	}
	if has {
		return fmt.Errorf("cannot delete %q: %w", r.Shape.Label, ErrHasStock)
	}
	return nil
}

// Prompt is the confirmation question for the user.
func (r DeleteRequest) Prompt() string {
	if r.Shape.Label != "" {
		return fmt.Sprintf("Delete %q permanently?", r.Shape.Label)
	}
	return "Delete this element?"
}

// PrepareDelete captures shape i for deletion. Nothing is mutated.
func (c *Controller) PrepareDelete(i int) (DeleteRequest, error) {
	if !c.opts.Admin {
		return DeleteRequest{}, ErrReadOnly
	}
	if i < 0 || i >= c.store.Len() {
		return DeleteRequest{}, fmt.Errorf("delete shape %d: out of range", i)
	}
	return DeleteRequest{UID: c.store.UID(i), Shape: c.store.At(i)}, nil
}

// CommitDelete removes the shape of a checked request.
func (c *Controller) CommitDelete(r DeleteRequest) error {
	if !c.opts.Admin {
		return ErrReadOnly
	}
	i, ok := c.store.IndexOf(r.UID)
	if !ok {
		return ErrShapeGone
	}
	c.recordBefore()
	if err := c.store.Remove(i); err != nil {
		return err
	}
	c.store.NormalizeZ()
	switch {
	case c.selected == i:
		c.selected = -1
	case c.selected > i:
		c.selected--
	}
	c.markModified()
	return nil
}

// Delete removes shape i after the stock check and the confirmation callback.
// On any failure the shape stays in place.
func (c *Controller) Delete(ctx context.Context, i int) error {
	l := applog.WithOperation(applog.WithComponent("editor"), "delete")
	req, err := c.PrepareDelete(i)
	if err != nil {
		return err
	}
	if err := req.Check(ctx, c.opts.Checker); err != nil {
		l.Info("delete blocked", slog.String("label", req.Shape.Label), slog.Any("err", err))
		return err
	}
	if c.opts.Confirm != nil && !c.opts.Confirm(req.Shape) {
		return ErrDeleteCancelled
	}
	return c.CommitDelete(req)
}

// DeleteSelected deletes the selected shape.
func (c *Controller) DeleteSelected(ctx context.Context) error {
	i, ok := c.Selected()
	if !ok {
		return ErrNoSelection
	}
	return c.Delete(ctx, i)
}
