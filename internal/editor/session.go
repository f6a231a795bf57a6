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
	"sync"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

var (
	// ErrSaveInFlight is returned when a save is requested while another is pending.
	ErrSaveInFlight = errors.New("a save is already in progress")
	// ErrNotModified is returned when there is nothing to save.
	ErrNotModified = errors.New("no unsaved changes")
)

// Saver persists one layout batch and returns the ids of the saved shapes in request
// order.
type Saver interface {
	SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error)
}

// SaveJob is one save in flight. Run may be called from any goroutine; Begin and Finish
// belong to the event loop.
type SaveJob struct {
	WarehouseID int64
	Shapes      []domain.Shape

	uids []uint64
	rev  uint64
	ids  []int64
	err  error
}

// Run performs the request.
func (j *SaveJob) Run(ctx context.Context, s Saver) error {
	j.ids, j.err = s.SaveLayout(ctx, j.WarehouseID, j.Shapes)
	if j.err == nil && len(j.ids) != len(j.Shapes) {
		j.err = fmt.Errorf("server returned %d ids for %d shapes", len(j.ids), len(j.Shapes))
	}
	return j.err
}

// Session couples a Controller with a Saver and collects banner notices.
type Session struct {
	ctrl  *Controller
	saver Saver

	mu      sync.Mutex
	saving  bool
	notices []Notice
}

func NewSession(ctrl *Controller, saver Saver) *Session {
	return &Session{ctrl: ctrl, saver: saver}
}

func (s *Session) Controller() *Controller { return s.ctrl }

// Saving reports whether a save is pending.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Notify queues a banner message.
func (s *Session) Notify(n ...Notice) {
	if len(n) == 0 {
		return
	}
	s.mu.Lock()
	s.notices = append(s.notices, n...)
	s.mu.Unlock()
}

// Notices drains queued messages.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// BeginSave snapshots the layout for saving. Geometry is rounded to whole units.
func (s *Session) BeginSave() (*SaveJob, error) {
	if !s.ctrl.Admin() {
		return nil, ErrReadOnly
	}
	if s.saver == nil {
		return nil, errors.New("no save target configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return nil, ErrSaveInFlight
	}
	if !s.ctrl.Modified() {
		return nil, ErrNotModified
	}
	st := s.ctrl.store
	job := &SaveJob{
		WarehouseID: s.ctrl.WarehouseID(),
		Shapes:      make([]domain.Shape, st.Len()),
		uids:        make([]uint64, st.Len()),
		rev:         s.ctrl.Revision(),
	}
	for i := range job.Shapes {
		job.Shapes[i] = st.At(i).Rounded()
		job.uids[i] = st.UID(i)
	}
	s.saving = true
	return job, nil
}

// FinishSave applies the outcome of a job that has run. On success ids are written back
// by position and the modified flag is cleared unless the layout was edited meanwhile.
// On failure nothing changes and the error is also queued as a notice.
func (s *Session) FinishSave(job *SaveJob) error {
	l := applog.WithOperation(applog.WithComponent("editor"), "save")
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()

	if job.err != nil {
		l.Warn("save failed", slog.Int64("warehouse", job.WarehouseID), slog.Any("err", job.err))
		s.Notify(Notice{Level: NoticeError, Text: "Save failed: " + job.err.Error()})
		return job.err
	}
	st := s.ctrl.store
	for k, uid := range job.uids {
		i, ok := st.IndexOf(uid)
		if !ok {
			continue
		}
		_ = st.SetID(i, job.ids[k])
	}
	if s.ctrl.Revision() == job.rev {
		s.ctrl.MarkSaved()
	}
	l.Info("layout saved", slog.Int64("warehouse", job.WarehouseID), slog.Int("shapes", len(job.ids)))
	s.Notify(Notice{Level: NoticeInfo, Text: "Layout saved"})
	return nil
}

// Save runs a whole save on the calling goroutine.
func (s *Session) Save(ctx context.Context) error {
	job, err := s.BeginSave()
	if err != nil {
		return err
	}
	_ = job.Run(ctx, s.saver)
	return s.FinishSave(job)
}
