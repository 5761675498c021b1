package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/queue"
	"github.com/farmtech/livestock-auth/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint64]*model.User
	nextID uint64
	err    error // returned by every lookup when set
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uint64]*model.User{}}
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if e.Username == u.Username || e.Email == u.Email {
			return 0, repository.ErrDuplicate
		}
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := f.GetByUsername(ctx, username)
	return exists(err)
}

func (f *fakeUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return exists(err)
}

func exists(err error) (bool, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.LastLoginAt = &at
		return nil
	}
	return repository.ErrNotFound
}

func (f *fakeUsers) SoftDelete(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	u.DeletedAt = &at
	u.Active = false
	return nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.byID {
		if u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeUsers) setActive(id uint64, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Active = active
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.IdentityEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.IdentityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}
