package pgstore

import (
	"context"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

type categories struct{ s *Store }

const categoryColumns = `c.id, c.name, c.description,
	(SELECT count(*) FROM applications a WHERE a.category_id = c.id)`

func scanCategory(row rowScanner) (spend.Category, error) {
	var c spend.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ApplicationCount)
	return c, err
}

func scanSubCategory(row rowScanner) (spend.SubCategory, error) {
	var sc spend.SubCategory
	err := row.Scan(&sc.ID, &sc.CategoryID, &sc.Name, &sc.Description)
	return sc, err
}

func scanField(row rowScanner) (spend.Field, error) {
	var f spend.Field
	err := row.Scan(&f.ID, &f.SubCategoryID, &f.Name, &f.Key, &f.Type, &f.Required, &f.Options)
	if len(f.Options) == 0 {
		f.Options = nil
	}
	return f, err
}

const (
	subCategorySelect = "SELECT id, category_id, name, description FROM subcategories"
	fieldSelect       = "SELECT id, subcategory_id, name, key, type, required, options FROM fields"
)

func (r categories) List(ctx context.Context, params store.ListParams) (store.Page[spend.Category], error) {
	params = params.Normalized()
	lq := &listQuery{}
	lq.search(params.Query, "c.name", "c.description")
	order := orderBy("name", params.Desc, map[string]string{"name": "lower(c.name)"}, "lower(c.name)", "c.id")
	return fetchPage(ctx, r.s.pool, params, categoryColumns, "categories c", lq, order, scanCategory)
}

func (r categories) Tree(ctx context.Context) ([]spend.Category, error) {
	cats, err := collect(ctx, r.s.pool, "SELECT "+categoryColumns+" FROM categories c ORDER BY lower(c.name), c.id", scanCategory)
	if err != nil {
		return nil, err
	}
	subs, err := collect(ctx, r.s.pool, subCategorySelect+" ORDER BY lower(name), id", scanSubCategory)
	if err != nil {
		return nil, err
	}
	fields, err := collect(ctx, r.s.pool, fieldSelect+" ORDER BY lower(name), id", scanField)
	if err != nil {
		return nil, err
	}

	fieldsBySub := map[int64][]spend.Field{}
	for _, f := range fields {
		fieldsBySub[f.SubCategoryID] = append(fieldsBySub[f.SubCategoryID], f)
	}
	subsByCat := map[int64][]spend.SubCategory{}
	for _, sc := range subs {
		sc.Fields = fieldsBySub[sc.ID]
		subsByCat[sc.CategoryID] = append(subsByCat[sc.CategoryID], sc)
	}
	for i := range cats {
		cats[i].SubCategories = subsByCat[cats[i].ID]
	}
	return cats, nil
}

func (r categories) Get(ctx context.Context, id int64) (spend.Category, error) {
	c, err := scanCategory(r.s.pool.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories c WHERE c.id = $1", id))
	if err != nil {
		return spend.Category{}, mapErr(err, "category", id)
	}
	c.SubCategories, err = collect(ctx, r.s.pool, subCategorySelect+" WHERE category_id = $1 ORDER BY lower(name), id", scanSubCategory, id)
	if err != nil {
		return spend.Category{}, err
	}
	return c, nil
}

func (r categories) Create(ctx context.Context, in spend.CategoryInput) (spend.Category, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Category{}, err
	}
	var id int64
	err := r.s.pool.QueryRow(ctx,
		"INSERT INTO categories (name, description, created_at) VALUES ($1, $2, $3) RETURNING id",
		in.Name, in.Description, r.s.clock()).Scan(&id)
	if err != nil {
		return spend.Category{}, mapErr(err, "category", in.Name)
	}
	return r.Get(ctx, id)
}

func (r categories) Update(ctx context.Context, id int64, in spend.CategoryInput) (spend.Category, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Category{}, err
	}
	tag, err := r.s.pool.Exec(ctx, "UPDATE categories SET name = $2, description = $3 WHERE id = $1", id, in.Name, in.Description)
	if err != nil {
		return spend.Category{}, mapErr(err, "category", in.Name)
	}
	if err := expectRow(tag, "category", id); err != nil {
		return spend.Category{}, err
	}
	return r.Get(ctx, id)
}

// Delete fails with ErrConflict while subcategories exist. Applications lose the category.
func (r categories) Delete(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "category", id)
	}
	return expectRow(tag, "category", id)
}

func (r categories) ListSubCategories(ctx context.Context, categoryID int64) ([]spend.SubCategory, error) {
	if categoryID == 0 {
		return collect(ctx, r.s.pool, subCategorySelect+" ORDER BY lower(name), id", scanSubCategory)
	}
	ok, err := exists(ctx, r.s.pool, "categories", categoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("category", categoryID)
	}
	return collect(ctx, r.s.pool, subCategorySelect+" WHERE category_id = $1 ORDER BY lower(name), id", scanSubCategory, categoryID)
}

func (r categories) GetSubCategory(ctx context.Context, id int64) (spend.SubCategory, error) {
	sc, err := scanSubCategory(r.s.pool.QueryRow(ctx, subCategorySelect+" WHERE id = $1", id))
	if err != nil {
		return spend.SubCategory{}, mapErr(err, "subcategory", id)
	}
	sc.Fields, err = collect(ctx, r.s.pool, fieldSelect+" WHERE subcategory_id = $1 ORDER BY lower(name), id", scanField, id)
	if err != nil {
		return spend.SubCategory{}, err
	}
	return sc, nil
}

func (r categories) CreateSubCategory(ctx context.Context, in spend.SubCategoryInput) (spend.SubCategory, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.SubCategory{}, err
	}
	if ok, err := exists(ctx, r.s.pool, "categories", in.CategoryID); err != nil {
		return spend.SubCategory{}, err
	} else if !ok {
		return spend.SubCategory{}, notFound("category", in.CategoryID)
	}
	var id int64
	err := r.s.pool.QueryRow(ctx,
		"INSERT INTO subcategories (category_id, name, description) VALUES ($1, $2, $3) RETURNING id",
		in.CategoryID, in.Name, in.Description).Scan(&id)
	if err != nil {
		return spend.SubCategory{}, mapErr(err, "subcategory", in.Name)
	}
	return r.GetSubCategory(ctx, id)
}

func (r categories) UpdateSubCategory(ctx context.Context, id int64, in spend.SubCategoryInput) (spend.SubCategory, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.SubCategory{}, err
	}
	if ok, err := exists(ctx, r.s.pool, "subcategories", id); err != nil {
		return spend.SubCategory{}, err
	} else if !ok {
		return spend.SubCategory{}, notFound("subcategory", id)
	}
	if ok, err := exists(ctx, r.s.pool, "categories", in.CategoryID); err != nil {
		return spend.SubCategory{}, err
	} else if !ok {
		return spend.SubCategory{}, notFound("category", in.CategoryID)
	}
	_, err := r.s.pool.Exec(ctx,
		"UPDATE subcategories SET category_id = $2, name = $3, description = $4 WHERE id = $1",
		id, in.CategoryID, in.Name, in.Description)
	if err != nil {
		return spend.SubCategory{}, mapErr(err, "subcategory", in.Name)
	}
	return r.GetSubCategory(ctx, id)
}

// DeleteSubCategory fails with ErrConflict while fields exist.
func (r categories) DeleteSubCategory(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM subcategories WHERE id = $1", id)
	if err != nil {
		return mapErr(err, "subcategory", id)
	}
	return expectRow(tag, "subcategory", id)
}

func (r categories) ListFields(ctx context.Context, subCategoryID int64) ([]spend.Field, error) {
	ok, err := exists(ctx, r.s.pool, "subcategories", subCategoryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("subcategory", subCategoryID)
	}
	return collect(ctx, r.s.pool, fieldSelect+" WHERE subcategory_id = $1 ORDER BY lower(name), id", scanField, subCategoryID)
}

func (r categories) getField(ctx context.Context, id int64) (spend.Field, error) {
	f, err := scanField(r.s.pool.QueryRow(ctx, fieldSelect+" WHERE id = $1", id))
	return f, mapErr(err, "field", id)
}

func (r categories) CreateField(ctx context.Context, in spend.FieldInput) (spend.Field, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Field{}, err
	}
	if ok, err := exists(ctx, r.s.pool, "subcategories", in.SubCategoryID); err != nil {
		return spend.Field{}, err
	} else if !ok {
		return spend.Field{}, notFound("subcategory", in.SubCategoryID)
	}
	var id int64
	err := r.s.pool.QueryRow(ctx, `
		INSERT INTO fields (subcategory_id, name, key, type, required, options)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		in.SubCategoryID, in.Name, in.Key, in.Type, in.Required, nonNil(in.Options)).Scan(&id)
	if err != nil {
		return spend.Field{}, mapErr(err, "field", in.Key)
	}
	return r.getField(ctx, id)
}

func (r categories) UpdateField(ctx context.Context, id int64, in spend.FieldInput) (spend.Field, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return spend.Field{}, err
	}
	if ok, err := exists(ctx, r.s.pool, "fields", id); err != nil {
		return spend.Field{}, err
	} else if !ok {
		return spend.Field{}, notFound("field", id)
	}
	if ok, err := exists(ctx, r.s.pool, "subcategories", in.SubCategoryID); err != nil {
		return spend.Field{}, err
	} else if !ok {
		return spend.Field{}, notFound("subcategory", in.SubCategoryID)
	}
	_, err := r.s.pool.Exec(ctx, `
		UPDATE fields SET subcategory_id = $2, name = $3, key = $4, type = $5, required = $6, options = $7
		WHERE id = $1`,
		id, in.SubCategoryID, in.Name, in.Key, in.Type, in.Required, nonNil(in.Options))
	if err != nil {
		return spend.Field{}, mapErr(err, "field", in.Key)
	}
	return r.getField(ctx, id)
}

func (r categories) DeleteField(ctx context.Context, id int64) error {
	tag, err := r.s.pool.Exec(ctx, "DELETE FROM fields WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(tag, "field", id)
}
