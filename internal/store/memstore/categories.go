package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type categories struct{ s *Store }

// categoryView copies c and counts its applications. Caller holds the lock.
func (s *Store) categoryView(c spend.Category) spend.Category {
	c.SubCategories = nil
	c.ApplicationCount = 0
	for _, a := range s.apps {
		if a.CategoryID != nil && *a.CategoryID == c.ID {
			c.ApplicationCount++
		}
	}
	return c
}

func (s *Store) sortedCategories() []spend.Category {
	out := make([]spend.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, s.categoryView(c))
	}
	sortBy(out, false, func(c spend.Category) int64 { return c.ID }, func(a, b spend.Category) int { return compareStrings(a.Name, b.Name) })
	return out
}

func (s *Store) subCategoriesOf(categoryID int64) []spend.SubCategory {
	out := make([]spend.SubCategory, 0)
	for _, sc := range s.subs {
		if sc.CategoryID == categoryID {
			sc.Fields = nil
			out = append(out, sc)
		}
	}
	sortBy(out, false, func(sc spend.SubCategory) int64 { return sc.ID }, func(a, b spend.SubCategory) int { return compareStrings(a.Name, b.Name) })
	return out
}

func (s *Store) fieldsOf(subCategoryID int64) []spend.Field {
	out := make([]spend.Field, 0)
	for _, f := range s.fields {
		if f.SubCategoryID == subCategoryID {
			f.Options = copyStrings(f.Options)
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r categories) List(ctx context.Context, params store.ListParams) (store.Page[spend.Category], error) {
	if err := ctx.Err(); err != nil {
		return store.Page[spend.Category]{}, err
	}
	params = params.Normalized()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.s.sortedCategories()
	out := all[:0]
	for _, c := range all {
		if matchesQuery(params.Query, c.Name, c.Description) {
			out = append(out, c)
		}
	}
	if params.Desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return store.Paginate(out, params), nil
}

func (r categories) Tree(ctx context.Context) ([]spend.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sortedCategories()
	for i := range out {
		subs := s.subCategoriesOf(out[i].ID)
		for j := range subs {
			subs[j].Fields = s.fieldsOf(subs[j].ID)
		}
		out[i].SubCategories = subs
	}
	return out, nil
}

func (r categories) Get(ctx context.Context, id int64) (spend.Category, error) {
	if err := ctx.Err(); err != nil {
		return spend.Category{}, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return spend.Category{}, notFound("category", id)
	}
	c = s.categoryView(c)
	c.SubCategories = s.subCategoriesOf(id)
	return c, nil
}

// categoryNameTaken must be called with the lock held.
func (s *Store) categoryNameTaken(name string, except int64) bool {
	for _, c := range s.categories {
		if c.ID != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (r categories) Create(ctx context.Context, in spend.CategoryInput) (spend.Category, error) {
	if err := ctx.Err(); err != nil {
		return spend.Category{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Category{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryNameTaken(in.Name, 0) {
		return spend.Category{}, conflict("category %q exists", in.Name)
	}
	c := spend.Category{ID: s.nextID(), Name: in.Name, Description: in.Description}
	s.categories[c.ID] = c
	return c, nil
}

func (r categories) Update(ctx context.Context, id int64, in spend.CategoryInput) (spend.Category, error) {
	if err := ctx.Err(); err != nil {
		return spend.Category{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Category{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return spend.Category{}, notFound("category", id)
	}
	if s.categoryNameTaken(in.Name, id) {
		return spend.Category{}, conflict("category %q exists", in.Name)
	}
	c.Name = in.Name
	c.Description = in.Description
	s.categories[id] = c
	return s.categoryView(c), nil
}

// Delete refuses while subcategories exist. Applications in the category become uncategorized.
func (r categories) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return notFound("category", id)
	}
	for _, sc := range s.subs {
		if sc.CategoryID == id {
			return conflict("category %d has subcategories", id)
		}
	}
	for aid, a := range s.apps {
		if a.CategoryID != nil && *a.CategoryID == id {
			a.CategoryID = nil
			a.SubCategoryID = nil
			s.apps[aid] = a
		}
	}
	delete(s.categories, id)
	return nil
}

func (r categories) ListSubCategories(ctx context.Context, categoryID int64) ([]spend.SubCategory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if categoryID <= 0 {
		out := make([]spend.SubCategory, 0, len(s.subs))
		for _, c := range s.sortedCategories() {
			out = append(out, s.subCategoriesOf(c.ID)...)
		}
		return out, nil
	}
	if _, ok := s.categories[categoryID]; !ok {
		return nil, notFound("category", categoryID)
	}
	return s.subCategoriesOf(categoryID), nil
}

func (r categories) GetSubCategory(ctx context.Context, id int64) (spend.SubCategory, error) {
	if err := ctx.Err(); err != nil {
		return spend.SubCategory{}, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.subs[id]
	if !ok {
		return spend.SubCategory{}, notFound("subcategory", id)
	}
	sc.Fields = s.fieldsOf(id)
	return sc, nil
}

func (s *Store) subCategoryNameTaken(categoryID int64, name string, except int64) bool {
	for _, sc := range s.subs {
		if sc.ID != except && sc.CategoryID == categoryID && strings.EqualFold(sc.Name, name) {
			return true
		}
	}
	return false
}

func (r categories) CreateSubCategory(ctx context.Context, in spend.SubCategoryInput) (spend.SubCategory, error) {
	if err := ctx.Err(); err != nil {
		return spend.SubCategory{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.SubCategory{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[in.CategoryID]; !ok {
		return spend.SubCategory{}, notFound("category", in.CategoryID)
	}
	if s.subCategoryNameTaken(in.CategoryID, in.Name, 0) {
		return spend.SubCategory{}, conflict("subcategory %q exists", in.Name)
	}
	sc := spend.SubCategory{ID: s.nextID(), CategoryID: in.CategoryID, Name: in.Name, Description: in.Description}
	s.subs[sc.ID] = sc
	return sc, nil
}

func (r categories) UpdateSubCategory(ctx context.Context, id int64, in spend.SubCategoryInput) (spend.SubCategory, error) {
	if err := ctx.Err(); err != nil {
		return spend.SubCategory{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.SubCategory{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.subs[id]
	if !ok {
		return spend.SubCategory{}, notFound("subcategory", id)
	}
	if _, ok := s.categories[in.CategoryID]; !ok {
		return spend.SubCategory{}, notFound("category", in.CategoryID)
	}
	if s.subCategoryNameTaken(in.CategoryID, in.Name, id) {
		return spend.SubCategory{}, conflict("subcategory %q exists", in.Name)
	}
	sc.CategoryID = in.CategoryID
	sc.Name = in.Name
	sc.Description = in.Description
	s.subs[id] = sc
	return sc, nil
}

func (r categories) DeleteSubCategory(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return notFound("subcategory", id)
	}
	for _, f := range s.fields {
		if f.SubCategoryID == id {
			return conflict("subcategory %d has fields", id)
		}
	}
	for aid, a := range s.apps {
		if a.SubCategoryID != nil && *a.SubCategoryID == id {
			a.SubCategoryID = nil
			s.apps[aid] = a
		}
	}
	delete(s.subs, id)
	return nil
}

func (r categories) ListFields(ctx context.Context, subCategoryID int64) ([]spend.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.subs[subCategoryID]; !ok {
		return nil, notFound("subcategory", subCategoryID)
	}
	return s.fieldsOf(subCategoryID), nil
}

func (s *Store) fieldKeyTaken(subCategoryID int64, key string, except int64) bool {
	for _, f := range s.fields {
		if f.ID != except && f.SubCategoryID == subCategoryID && f.Key == key {
			return true
		}
	}
	return false
}

func (r categories) CreateField(ctx context.Context, in spend.FieldInput) (spend.Field, error) {
	if err := ctx.Err(); err != nil {
		return spend.Field{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Field{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[in.SubCategoryID]; !ok {
		return spend.Field{}, notFound("subcategory", in.SubCategoryID)
	}
	if s.fieldKeyTaken(in.SubCategoryID, in.Key, 0) {
		return spend.Field{}, conflict("field %q exists", in.Key)
	}
	f := spend.Field{
		ID:            s.nextID(),
		SubCategoryID: in.SubCategoryID,
		Name:          in.Name,
		Key:           in.Key,
		Type:          in.Type,
		Required:      in.Required,
		Options:       copyStrings(in.Options),
	}
	s.fields[f.ID] = f
	return f, nil
}

func (r categories) UpdateField(ctx context.Context, id int64, in spend.FieldInput) (spend.Field, error) {
	if err := ctx.Err(); err != nil {
		return spend.Field{}, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Field{}, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fields[id]
	if !ok {
		return spend.Field{}, notFound("field", id)
	}
	if _, ok := s.subs[in.SubCategoryID]; !ok {
		return spend.Field{}, notFound("subcategory", in.SubCategoryID)
	}
	if s.fieldKeyTaken(in.SubCategoryID, in.Key, id) {
		return spend.Field{}, conflict("field %q exists", in.Key)
	}
	f.SubCategoryID = in.SubCategoryID
	f.Name = in.Name
	f.Key = in.Key
	f.Type = in.Type
	f.Required = in.Required
	f.Options = copyStrings(in.Options)
	s.fields[id] = f
	f.Options = copyStrings(f.Options)
	return f, nil
}

func (r categories) DeleteField(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[id]; !ok {
		return notFound("field", id)
	}
	delete(s.fields, id)
	return nil
}
