// Copyright 2026 The Lattice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-dev/lattice/middleware/requestctx"
	"github.com/lattice-dev/lattice/validation"
)

// User is the stored representation.
type User struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Age       int64          `json:"age,omitempty"`
	Role      string         `json:"role"`
	Profile   map[string]any `json:"profile,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// userStore is an in-memory user repository. It exists to exercise the
// middleware spine end to end; a real deployment swaps it for a database.
type userStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]*User)}
}

func (s *userStore) list(page *validation.Page) ([]*User, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(page.Search)
	all := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		all = append(all, u)
	}

	less := func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) }
	switch page.Sort {
	case "name":
		less = func(i, j int) bool { return all[i].Name < all[j].Name }
	case "email":
		less = func(i, j int) bool { return all[i].Email < all[j].Email }
	}
	if page.Descending() {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.Slice(all, less)

	total := len(all)
	if page.Offset >= total {
		return nil, total
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return all[page.Offset:end], total
}

func (s *userStore) get(id string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *userStore) put(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *userStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

// User endpoint descriptors.

func createUserDescriptor() *validation.Descriptor {
	return validation.NewDescriptor(validation.Fields{
		"name":    validation.String().MinLen(2).MaxLen(100).Required().Trim(),
		"email":   validation.Email().Required(),
		"age":     validation.Int().Min(0).Max(150).Coerce(),
		"role":    validation.Enum("admin", "editor", "viewer").Default("viewer"),
		"profile": validation.Object(nil),
	}, validation.AllowUnknown(), validation.StripUnknown())
}

func updateUserDescriptor() *validation.Descriptor {
	return validation.NewDescriptor(validation.Fields{
		"name":    validation.String().MinLen(2).MaxLen(100).Trim(),
		"email":   validation.Email(),
		"age":     validation.Int().Min(0).Max(150).Coerce(),
		"role":    validation.Enum("admin", "editor", "viewer"),
		"profile": validation.Object(nil),
	}, validation.AllowUnknown(), validation.StripUnknown())
}

// handleListUsers returns a pagination window over the store.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := validation.PageFrom(r.Context())
	users, total := a.users.list(page)
	if users == nil {
		users = []*User{}
	}

	pagination := map[string]any{
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
		"page":   page.Number,
		"sort":   page.Sort,
	}
	if page.Order != "" {
		pagination["order"] = page.Order
	}

	respond(w, http.StatusOK, map[string]any{
		"data":       users,
		"pagination": pagination,
	})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := validation.PathFrom(r.Context())["id"].(string)
	user, ok := a.users.get(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "NotFoundError", "user not found")
		return
	}
	respond(w, http.StatusOK, user)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	body := validation.BodyFrom(r.Context())

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.NewString(),
		Name:      body["name"].(string),
		Email:     body["email"].(string),
		Role:      body["role"].(string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if age, ok := body["age"].(int64); ok {
		user.Age = age
	}
	if profile, ok := body["profile"].(map[string]any); ok {
		user.Profile = profile
	}
	a.users.put(user)

	a.logger.Info("user created",
		"user_id", user.ID,
		"request_id", requestctx.CorrelationID(r.Context()),
	)

	w.Header().Set("Location", "/api/users/"+user.ID)
	respond(w, http.StatusCreated, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := validation.PathFrom(r.Context())["id"].(string)
	body := validation.BodyFrom(r.Context())

	user, ok := a.users.get(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "NotFoundError", "user not found")
		return
	}

	updated := *user
	if name, ok := body["name"].(string); ok {
		updated.Name = name
	}
	if email, ok := body["email"].(string); ok {
		updated.Email = email
	}
	if age, ok := body["age"].(int64); ok {
		updated.Age = age
	}
	if role, ok := body["role"].(string); ok {
		updated.Role = role
	}
	if profile, ok := body["profile"].(map[string]any); ok {
		updated.Profile = profile
	}
	updated.UpdatedAt = time.Now().UTC()
	a.users.put(&updated)

	respond(w, http.StatusOK, &updated)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := validation.PathFrom(r.Context())["id"].(string)
	if !a.users.delete(id) {
		respondError(w, r, http.StatusNotFound, "NotFoundError", "user not found")
		return
	}
	respond(w, http.StatusNoContent, nil)
}
