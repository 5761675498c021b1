package service

import (
	"context"
	"errors"
	"strings"

	"github.com/farmtech/livestock-auth/internal/errs"
	"github.com/farmtech/livestock-auth/internal/model"
	"github.com/farmtech/livestock-auth/internal/repository"
)

// Directory resolves stored identities and enforces that only active ones
// are returned. Missing and inactive identities fail with the same message.
type Directory struct {
	users repository.UserRepository
}

func NewDirectory(users repository.UserRepository) *Directory {
	return &Directory{users: users}
}

func (d *Directory) LoadActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errs.NoActiveIdentity(errs.ErrIdentityNotFound)
	}
	return active(d.users.GetByEmail(ctx, email))
}

func (d *Directory) LoadActiveByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errs.NoActiveIdentity(errs.ErrIdentityNotFound)
	}
	return active(d.users.GetByUsername(ctx, username))
}

func (d *Directory) LoadActiveByID(ctx context.Context, id uint64) (*model.User, error) {
	if id == 0 {
		return nil, errs.NoActiveIdentity(errs.ErrIdentityNotFound)
	}
	return active(d.users.GetByID(ctx, id))
}

func active(u *model.User, err error) (*model.User, error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, errs.NoActiveIdentity(errs.ErrIdentityNotFound)
	case err != nil:
		return nil, err
	case !u.IsActive():
		return nil, errs.NoActiveIdentity(errs.ErrIdentityInactive)
	}
	return u, nil
}
