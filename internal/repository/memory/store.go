// Package memory is an in-memory implementation of the repository
// interfaces, suitable for tests and local development. Transactions
// serialize on a single lock and roll back by restoring a snapshot.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medtrack-api/internal/model"
	"github.com/jwalitptl/medtrack-api/internal/repository"
)

// Operation names accepted by FailOn.
const (
	OpUserCreate         = "user.create"
	OpPatientCreate      = "patient.create"
	OpProcedureCreate    = "procedure.create"
	OpProcedureUpdate    = "procedure.update"
	OpNotificationCreate = "notification.create"
	OpStatIncrement      = "stat.increment"
	OpCleanupEnqueue     = "cleanup.enqueue"
)

type txKey struct{ s *Store }

type state struct {
	users         map[uuid.UUID]model.User
	roles         map[string]bool
	patients      map[uuid.UUID]model.Patient
	procedures    map[uuid.UUID]model.Procedure
	notifications []model.Notification
	stat          *model.AdminStat
	cleanup       map[uuid.UUID]model.FileCleanupTask
}

func (st *state) clone() *state {
	c := &state{
		users:         make(map[uuid.UUID]model.User, len(st.users)),
		roles:         make(map[string]bool, len(st.roles)),
		patients:      make(map[uuid.UUID]model.Patient, len(st.patients)),
		procedures:    make(map[uuid.UUID]model.Procedure, len(st.procedures)),
		notifications: append([]model.Notification(nil), st.notifications...),
		cleanup:       make(map[uuid.UUID]model.FileCleanupTask, len(st.cleanup)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k, v := range st.patients {
		c.patients[k] = v
	}
	for k, v := range st.procedures {
		c.procedures[k] = v
	}
	for k, v := range st.cleanup {
		c.cleanup[k] = v
	}
	if st.stat != nil {
		s := *st.stat
		c.stat = &s
	}
	return c
}

// Store holds every table. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	st    *state
	fails map[string]error
}

// New returns an empty store with the three roles seeded.
func New() *Store {
	st := &state{
		users:      map[uuid.UUID]model.User{},
		roles:      map[string]bool{},
		patients:   map[uuid.UUID]model.Patient{},
		procedures: map[uuid.UUID]model.Procedure{},
		cleanup:    map[uuid.UUID]model.FileCleanupTask{},
	}
	for _, r := range model.Roles {
		st.roles[string(r)] = true
	}
	return &Store{st: st, fails: map[string]error{}}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fails, op)
		return
	}
	s.fails[op] = err
}

// lock acquires the store unless ctx already carries its transaction.
func (s *Store) lock(ctx context.Context) func() {
	if _, ok := ctx.Value(txKey{s}).(bool); ok {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) failure(op string) error {
	return s.fails[op]
}

func (s *Store) Transactor() repository.Transactor { return transactor{s} }
func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Roles() repository.RoleRepository { return roleRepo{s} }
func (s *Store) Patients() repository.PatientRepository { return patientRepo{s} }
func (s *Store) Procedures() repository.ProcedureRepository { return procedureRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) AdminStats() repository.AdminStatRepository { return statRepo{s} }
func (s *Store) FileCleanup() repository.FileCleanupRepository { return cleanupRepo{s} }

// CountNotifications returns how many notifications exist for userID.
func (s *Store) CountNotifications(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.st.notifications {
		if note.UserID == userID {
			n++
		}
	}
	return n
}

type transactor struct{ s *Store }

func (t transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{t.s}).(bool); ok {
		return fn(ctx)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	snapshot := t.s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{t.s}, true)); err != nil {
		t.s.st = snapshot
		return err
	}
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpUserCreate); err != nil {
		return err
	}
	for _, u := range r.s.st.users {
		if u.Username == user.Username {
			return fmt.Errorf("failed to create user: %w", &repository.ErrDuplicate{Field: "username"})
		}
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("failed to create user: %w", &repository.ErrDuplicate{Field: "email"})
		}
	}
	if !r.s.st.roles[string(user.Role)] {
		return fmt.Errorf("failed to create user: unknown role %q", user.Role)
	}
	user.ID = uuid.New()
	user.DateJoined = time.Now().UTC()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.st.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r userRepo) List(ctx context.Context) ([]*model.UserInfo, error) {
	defer r.s.lock(ctx)()
	out := make([]*model.UserInfo, 0, len(r.s.st.users))
	for _, u := range r.s.st.users {
		info := u.Info()
		out = append(out, &info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) Exists(ctx context.Context, name string) (bool, error) {
	defer r.s.lock(ctx)()
	return r.s.st.roles[name], nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpPatientCreate); err != nil {
		return err
	}
	patient.ID = uuid.New()
	patient.CreatedDate = time.Now().UTC()
	r.s.st.patients[patient.ID] = *patient
	return nil
}

func (r patientRepo) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.st.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r patientRepo) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, error) {
	defer r.s.lock(ctx)()
	name := strings.ToLower(filter.Name)
	out := []*model.Patient{}
	for _, p := range r.s.st.patients {
		if name != "" && !strings.Contains(strings.ToLower(p.FirstName), name) {
			continue
		}
		if filter.City != "" && p.City != filter.City {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

type procedureRepo struct{ s *Store }

func (r procedureRepo) Create(ctx context.Context, procedure *model.Procedure) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpProcedureCreate); err != nil {
		return err
	}
	if _, ok := r.s.st.patients[procedure.PatientID]; !ok {
		return fmt.Errorf("failed to create procedure: patient foreign key violation")
	}
	now := time.Now().UTC()
	procedure.ID = uuid.New()
	procedure.CreatedDate = now
	procedure.UpdatedDate = now
	r.s.st.procedures[procedure.ID] = *procedure
	return nil
}

func (r procedureRepo) withCreator(p model.Procedure) *model.Procedure {
	if u, ok := r.s.st.users[p.CreatedByID]; ok {
		p.CreatedBy = u.Summary()
	}
	return &p
}

func (r procedureRepo) Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.st.procedures[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withCreator(p), nil
}

// GetForUpdate needs no row lock: transactions hold the whole store.
func (r procedureRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Procedure, error) {
	return r.Get(ctx, id)
}

func (r procedureRepo) Update(ctx context.Context, procedure *model.Procedure) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpProcedureUpdate); err != nil {
		return err
	}
	existing, ok := r.s.st.procedures[procedure.ID]
	if !ok {
		return repository.ErrNotFound
	}
	procedure.CreatedDate = existing.CreatedDate
	procedure.UpdatedDate = time.Now().UTC()
	r.s.st.procedures[procedure.ID] = *procedure
	return nil
}

func (r procedureRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.procedures[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.procedures, id)
	return nil
}

func (r procedureRepo) List(ctx context.Context, filter model.ProcedureFilter) ([]*model.Procedure, error) {
	defer r.s.lock(ctx)()
	out := []*model.Procedure{}
	for _, p := range r.s.st.procedures {
		if filter.PatientID != nil && p.PatientID != *filter.PatientID {
			continue
		}
		out = append(out, r.withCreator(p))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProcedureDatetime.After(out[j].ProcedureDatetime)
	})
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpNotificationCreate); err != nil {
		return err
	}
	n.ID = uuid.New()
	n.Timestamp = time.Now().UTC()
	r.s.st.notifications = append(r.s.st.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	defer r.s.lock(ctx)()
	out := []*model.Notification{}
	for i := len(r.s.st.notifications) - 1; i >= 0; i-- {
		n := r.s.st.notifications[i]
		if n.UserID != userID {
			continue
		}
		if u, ok := r.s.st.users[n.UserID]; ok {
			n.User = u.Summary()
		}
		out = append(out, &n)
	}
	return out, nil
}

type statRepo struct{ s *Store }

func (r statRepo) Increment(ctx context.Context, counter model.StatCounter) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpStatIncrement); err != nil {
		return err
	}
	if r.s.st.stat == nil {
		r.s.st.stat = &model.AdminStat{}
	}
	st := r.s.st.stat
	switch counter {
	case model.CounterTotalPatients:
		st.TotalPatients++
	case model.CounterTotalProcedures:
		st.TotalProcedures++
	case model.CounterFrontDeskUsers:
		st.FrontDeskUsers++
	case model.CounterDoctorUsers:
		st.DoctorUsers++
	case model.CounterAdminUsers:
		st.AdminUsers++
	default:
		return fmt.Errorf("unknown stat counter %q", counter)
	}
	st.LastUpdated = time.Now().UTC()
	return nil
}

func (r statRepo) Get(ctx context.Context) (*model.AdminStat, error) {
	defer r.s.lock(ctx)()
	if r.s.st.stat == nil {
		return nil, repository.ErrNotFound
	}
	st := *r.s.st.stat
	return &st, nil
}

type cleanupRepo struct{ s *Store }

func (r cleanupRepo) Enqueue(ctx context.Context, storageKey string, reason string) error {
	defer r.s.lock(ctx)()
	if err := r.s.failure(OpCleanupEnqueue); err != nil {
		return err
	}
	now := time.Now().UTC()
	id := uuid.New()
	r.s.st.cleanup[id] = model.FileCleanupTask{
		ID:           id,
		StorageKey:   storageKey,
		Status:       model.FileCleanupPending,
		ErrorMessage: &reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (r cleanupRepo) ClaimPending(ctx context.Context, limit int) ([]*model.FileCleanupTask, error) {
	defer r.s.lock(ctx)()
	out := []*model.FileCleanupTask{}
	for _, t := range r.s.st.cleanup {
		if t.Status != model.FileCleanupPending {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r cleanupRepo) Complete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()
	delete(r.s.st.cleanup, id)
	return nil
}

func (r cleanupRepo) RecordFailure(ctx context.Context, id uuid.UUID, reason string, status model.FileCleanupStatus) error {
	defer r.s.lock(ctx)()
	t, ok := r.s.st.cleanup[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Attempts++
	t.ErrorMessage = &reason
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	r.s.st.cleanup[id] = t
	return nil
}

func (r cleanupRepo) CountPending(ctx context.Context) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, t := range r.s.st.cleanup {
		if t.Status == model.FileCleanupPending {
			n++
		}
	}
	return n, nil
}

// CleanupTasks returns a copy of every queued cleanup task.
func (s *Store) CleanupTasks() []model.FileCleanupTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FileCleanupTask, 0, len(s.st.cleanup))
	for _, t := range s.st.cleanup {
		out = append(out, t)
	}
	return out
}
