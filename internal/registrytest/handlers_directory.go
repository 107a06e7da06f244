package registrytest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, who *Account) {
	role := r.URL.Query().Get("role")

	s.mu.Lock()
	users := []Account{}
	for _, a := range s.accounts {
		if role != "" && !strings.EqualFold(a.Role, role) {
			continue
		}
		users = append(users, *a)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].PJNumber < users[j].PJNumber })
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	a, ok := s.accounts[mux.Vars(r)["id"]]
	var out Account
	if ok {
		out = *a
	}
	s.mu.Unlock()

	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": out})
}

type accountFields struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	PJNumber *string `json:"pjNumber"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// applyAccount copies fields onto a. Callers hold s.mu.
func (s *Server) applyAccount(a *Account, f *accountFields) (int, string) {
	if f.Role != nil && roleRank(*f.Role) == 0 {
		return http.StatusBadRequest, "Invalid role"
	}
	if f.PJNumber != nil {
		if other := s.accountByPJ(*f.PJNumber); other != nil && other.ID != a.ID {
			return http.StatusConflict, "PJ number already registered"
		}
		a.PJNumber = *f.PJNumber
	}
	if f.Name != nil {
		a.Name = *f.Name
	}
	if f.Email != nil {
		a.Email = *f.Email
	}
	if f.Role != nil {
		a.Role = strings.ToLower(*f.Role)
	}
	if f.IsActive != nil {
		a.IsActive = *f.IsActive
	}
	return 0, ""
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, who *Account) {
	var f accountFields
	if !decodeJSON(r, &f) || f.Name == nil || f.PJNumber == nil {
		writeMessage(w, http.StatusBadRequest, "Name and PJ number are required")
		return
	}

	a := &Account{ID: "u-" + uuid.NewString(), Role: UserRole, IsActive: true}
	s.mu.Lock()
	if status, msg := s.applyAccount(a, &f); status != 0 {
		s.mu.Unlock()
		writeMessage(w, status, msg)
		return
	}
	s.accounts[a.ID] = a
	out := *a
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"user": out})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, who *Account) {
	var f accountFields
	if !decodeJSON(r, &f) {
		writeMessage(w, http.StatusBadRequest, "Invalid body")
		return
	}

	s.mu.Lock()
	a, ok := s.accounts[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	updated := *a
	if status, msg := s.applyAccount(&updated, &f); status != 0 {
		s.mu.Unlock()
		writeMessage(w, status, msg)
		return
	}
	*a = updated
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"user": updated})
}

func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	a, ok := s.accounts[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if a.ID == who.ID {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "Cannot deactivate your own account")
		return
	}
	a.IsActive = !a.IsActive
	out := *a
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"user": out})
}

func (s *Server) flatCategories() []Category {
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		cp.Children = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	flat := s.flatCategories()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": flat})
}

func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request, who *Account) {
	s.mu.Lock()
	flat := s.flatCategories()
	s.mu.Unlock()

	nodes := make(map[string]*Category, len(flat))
	for i := range flat {
		nodes[flat[i].ID] = &flat[i]
	}
	roots := []*Category{}
	for i := range flat {
		c := &flat[i]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": roots})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, who *Account) {
	var body struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Color       string  `json:"color"`
		ParentID    *string `json:"parentId"`
	}
	if !decodeJSON(r, &body) || strings.TrimSpace(body.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Category name is required")
		return
	}
	if body.Color == "" {
		body.Color = "#64748b"
	}

	s.mu.Lock()
	if body.ParentID != nil {
		if _, ok := s.categories[*body.ParentID]; !ok {
			s.mu.Unlock()
			writeMessage(w, http.StatusBadRequest, "Parent category not found")
			return
		}
	}
	slug := slugify(body.Name)
	for _, c := range s.categories {
		if c.Slug == slug {
			s.mu.Unlock()
			writeMessage(w, http.StatusConflict, "Category already exists")
			return
		}
	}
	c := &Category{
		ID:          "cat-" + uuid.NewString(),
		Name:        strings.TrimSpace(body.Name),
		Slug:        slug,
		Description: body.Description,
		Color:       body.Color,
		ParentID:    body.ParentID,
	}
	s.categories[c.ID] = c
	out := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, who *Account) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	c, ok := s.categories[id]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Category not found")
		return
	}
	if c.IsSystemDefined {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "System categories cannot be deleted")
		return
	}
	for _, other := range s.categories {
		if other.ParentID != nil && *other.ParentID == id {
			s.mu.Unlock()
			writeMessage(w, http.StatusBadRequest, "Category has subcategories")
			return
		}
	}
	delete(s.categories, id)
	s.mu.Unlock()

	writeMessage(w, http.StatusOK, "Category deleted")
}
