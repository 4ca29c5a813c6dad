// Package storetest provides in-memory repositories with the same error
// contract as the Postgres ones.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tech-e/apiserver/internal/store"
	"github.com/tech-e/apiserver/types"
)

// Users is an in-memory user repository. Err, when set, is returned by
// every call.
type Users struct {
	mu      sync.Mutex
	byID    map[string]types.User
	byEmail map[string]string
	Err     error
}

func NewUsers() *Users {
	return &Users{byID: make(map[string]types.User), byEmail: make(map[string]string)}
}

func (u *Users) FindByID(_ context.Context, id string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	user, ok := u.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	id, ok := u.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u.byID[id], nil
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	if user.PasswordHash == "" {
		return types.User{}, errors.New("password hash is required")
	}
	if _, exists := u.byEmail[user.Email]; exists {
		return types.User{}, store.ErrDuplicateKey
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	u.byID[user.ID] = user
	u.byEmail[user.Email] = user.ID
	return user, nil
}

func (u *Users) Save(_ context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	current, ok := u.byID[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if owner, taken := u.byEmail[user.Email]; taken && owner != user.ID {
		return types.User{}, store.ErrDuplicateKey
	}
	delete(u.byEmail, current.Email)
	user.PasswordHash = current.PasswordHash
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	u.byID[user.ID] = user
	u.byEmail[user.Email] = user.ID
	return user, nil
}

func (u *Users) ToggleBlocked(_ context.Context, id string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return false, u.Err
	}
	user, ok := u.byID[id]
	if !ok {
		return false, store.ErrNotFound
	}
	user.Blocked = !user.Blocked
	user.UpdatedAt = time.Now().UTC()
	u.byID[id] = user
	return user.Blocked, nil
}

// List omits password hashes like the Postgres projection.
func (u *Users) List(_ context.Context) ([]types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	out := make([]types.User, 0, len(u.byID))
	for _, user := range u.byID {
		user.PasswordHash = ""
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Packages is an in-memory package repository.
type Packages struct {
	mu    sync.Mutex
	items map[string]types.Package
}

func NewPackages() *Packages {
	return &Packages{items: make(map[string]types.Package)}
}

func (p *Packages) List(context.Context) ([]types.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Package, 0, len(p.items))
	for _, pkg := range p.items {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *Packages) Get(_ context.Context, id string) (types.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkg, ok := p.items[id]
	if !ok {
		return types.Package{}, store.ErrNotFound
	}
	return pkg, nil
}

func (p *Packages) Create(_ context.Context, pkg types.Package) (types.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkg.ID = uuid.NewString()
	now := time.Now().UTC()
	pkg.CreatedAt, pkg.UpdatedAt = now, now
	p.items[pkg.ID] = pkg
	return pkg, nil
}

func (p *Packages) Update(_ context.Context, pkg types.Package) (types.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.items[pkg.ID]
	if !ok {
		return types.Package{}, store.ErrNotFound
	}
	pkg.CreatedAt = current.CreatedAt
	pkg.UpdatedAt = time.Now().UTC()
	p.items[pkg.ID] = pkg
	return pkg, nil
}

func (p *Packages) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(p.items, id)
	return nil
}

// Payments is an in-memory payment repository.
type Payments struct {
	mu     sync.Mutex
	nextID int64
	items  []types.Payment
}

func NewPayments() *Payments {
	return &Payments{}
}

func (p *Payments) Create(_ context.Context, payment types.Payment) (types.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.items {
		if existing.PaymentIntentID == payment.PaymentIntentID {
			return types.Payment{}, store.ErrDuplicateKey
		}
	}
	p.nextID++
	payment.ID = p.nextID
	payment.CreatedAt = time.Now().UTC()
	p.items = append(p.items, payment)
	return payment, nil
}

func (p *Payments) GetByIntentID(_ context.Context, intentID string) (types.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, payment := range p.items {
		if payment.PaymentIntentID == intentID {
			return payment, nil
		}
	}
	return types.Payment{}, store.ErrNotFound
}

func (p *Payments) List(context.Context) ([]types.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Payment(nil), p.items...), nil
}

// Contacts is an in-memory contact repository.
type Contacts struct {
	mu    sync.Mutex
	items []types.Contact
}

func NewContacts() *Contacts {
	return &Contacts{}
}

func (c *Contacts) Create(_ context.Context, contact types.Contact) (types.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact.ID = uuid.NewString()
	contact.CreatedAt = time.Now().UTC()
	c.items = append(c.items, contact)
	return contact, nil
}

func (c *Contacts) Get(_ context.Context, id string) (types.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, contact := range c.items {
		if contact.ID == id {
			return contact, nil
		}
	}
	return types.Contact{}, store.ErrNotFound
}

func (c *Contacts) List(context.Context) ([]types.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Contact(nil), c.items...), nil
}
