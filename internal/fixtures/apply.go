package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

// Report counts rows created by Apply. Rows that already existed are not counted,
// except cost records which are upserted every time.
type Report struct {
	Categories    int
	SubCategories int
	Fields        int
	Applications  int
	Contracts     int
	Clients       int
	Leads         int
	Discoveries   int
	Costs         int
}

func (r Report) Total() int {
	return r.Categories + r.SubCategories + r.Fields + r.Applications + r.Contracts + r.Clients + r.Leads + r.Discoveries + r.Costs
}

// Apply writes a dataset into st. Existing rows are matched by natural key (category name,
// subcategory name, field key, application domain or name, contract start date, client and
// lead email, discovery canonical key) so applying twice creates nothing new.
func Apply(ctx context.Context, st store.Store, ds Dataset) (Report, error) {
	var rep Report

	if _, err := st.Settings().Update(ctx, ds.Settings); err != nil {
		return rep, fmt.Errorf("seed settings: %w", err)
	}

	tree, err := st.Categories().Tree(ctx)
	if err != nil {
		return rep, fmt.Errorf("load categories: %w", err)
	}
	categoryIDs := make(map[string]int64)
	subCategoryIDs := make(map[string]int64)
	for _, cat := range tree {
		categoryIDs[strings.ToLower(cat.Name)] = cat.ID
		for _, sub := range cat.SubCategories {
			subCategoryIDs[subKey(cat.Name, sub.Name)] = sub.ID
		}
	}

	for _, seed := range ds.Categories {
		catID, ok := categoryIDs[strings.ToLower(seed.Input.Name)]
		if !ok {
			cat, err := st.Categories().Create(ctx, seed.Input)
			if err != nil {
				return rep, fmt.Errorf("seed category %q: %w", seed.Input.Name, err)
			}
			catID = cat.ID
			categoryIDs[strings.ToLower(cat.Name)] = cat.ID
			rep.Categories++
		}
		for _, subSeed := range seed.SubCategories {
			key := subKey(seed.Input.Name, subSeed.Input.Name)
			subID, ok := subCategoryIDs[key]
			if !ok {
				in := subSeed.Input
				in.CategoryID = catID
				sub, err := st.Categories().CreateSubCategory(ctx, in)
				if err != nil {
					return rep, fmt.Errorf("seed subcategory %q: %w", in.Name, err)
				}
				subID = sub.ID
				subCategoryIDs[key] = sub.ID
				rep.SubCategories++
			}
			for _, field := range subSeed.Fields {
				field.SubCategoryID = subID
				if _, err := st.Categories().CreateField(ctx, field); err != nil {
					if errors.Is(err, store.ErrConflict) {
						continue
					}
					return rep, fmt.Errorf("seed field %q: %w", field.Key, err)
				}
				rep.Fields++
			}
		}
	}

	appIDs := make(map[string]int64, len(ds.Applications))
	for _, seed := range ds.Applications {
		in := seed.Input
		existing, err := st.Applications().FindByDomainOrName(ctx, in.Domain, in.Name)
		switch {
		case err == nil:
			appIDs[strings.ToLower(in.Name)] = existing.ID
			continue
		case !errors.Is(err, store.ErrNotFound):
			return rep, fmt.Errorf("look up application %q: %w", in.Name, err)
		}

		if seed.Category != "" {
			if id, ok := categoryIDs[strings.ToLower(seed.Category)]; ok {
				in.CategoryID = &id
			}
			if seed.SubCategory != "" {
				if id, ok := subCategoryIDs[subKey(seed.Category, seed.SubCategory)]; ok {
					in.SubCategoryID = &id
				}
			}
		}
		app, err := st.Applications().Create(ctx, in)
		if err != nil {
			return rep, fmt.Errorf("seed application %q: %w", in.Name, err)
		}
		if len(seed.Users) > 0 {
			if err := st.Applications().ReplaceUsers(ctx, app.ID, seed.Users); err != nil {
				return rep, fmt.Errorf("seed users for %q: %w", in.Name, err)
			}
		}
		appIDs[strings.ToLower(in.Name)] = app.ID
		rep.Applications++
	}

	for _, seed := range ds.Contracts {
		appID, ok := appIDs[strings.ToLower(strings.TrimSpace(seed.Application))]
		if !ok {
			return rep, fmt.Errorf("seed contract: unknown application %q", seed.Application)
		}
		existing, err := st.Contracts().ListByApplication(ctx, appID)
		if err != nil {
			return rep, fmt.Errorf("list contracts for %q: %w", seed.Application, err)
		}
		if hasContractStarting(existing, seed.Input.StartDate) {
			continue
		}
		in := seed.Input
		in.ApplicationID = appID
		if _, err := st.Contracts().Create(ctx, in); err != nil {
			return rep, fmt.Errorf("seed contract for %q: %w", seed.Application, err)
		}
		rep.Contracts++
	}

	for _, in := range ds.Clients {
		if _, err := st.Clients().Create(ctx, in); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return rep, fmt.Errorf("seed client %q: %w", in.Name, err)
		}
		rep.Clients++
	}

	for _, in := range ds.Leads {
		if _, err := st.Leads().Create(ctx, in); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return rep, fmt.Errorf("seed lead %q: %w", in.Name, err)
		}
		rep.Leads++
	}

	for _, obs := range ds.Discoveries {
		before, err := countDiscoveries(ctx, st)
		if err != nil {
			return rep, err
		}
		d, err := st.Discoveries().Upsert(ctx, obs)
		if err != nil {
			return rep, fmt.Errorf("seed discovery %q: %w", obs.DisplayName, err)
		}
		after, err := countDiscoveries(ctx, st)
		if err != nil {
			return rep, err
		}
		if after > before {
			rep.Discoveries++
		}
		if appID, ok := appIDs[strings.ToLower(d.DisplayName)]; ok && !d.Managed() {
			if err := st.Discoveries().Link(ctx, d.ID, appID); err != nil {
				return rep, fmt.Errorf("link discovery %q: %w", d.DisplayName, err)
			}
		}
	}

	for _, seed := range ds.Costs {
		appID, ok := appIDs[strings.ToLower(strings.TrimSpace(seed.Application))]
		if !ok {
			return rep, fmt.Errorf("seed cost: unknown application %q", seed.Application)
		}
		rec := seed.Record
		rec.ApplicationID = appID
		if err := st.Costs().Upsert(ctx, rec); err != nil {
			return rep, fmt.Errorf("seed cost for %q: %w", seed.Application, err)
		}
		rep.Costs++
	}

	return rep, nil
}

func subKey(category, sub string) string {
	return strings.ToLower(category) + "/" + strings.ToLower(sub)
}

func hasContractStarting(contracts []spend.Contract, start spend.Date) bool {
	for _, c := range contracts {
		if c.StartDate.Equal(start) {
			return true
		}
	}
	return false
}

func countDiscoveries(ctx context.Context, st store.Store) (int64, error) {
	page, err := st.Discoveries().List(ctx, store.ListParams{Size: 1})
	if err != nil {
		return 0, fmt.Errorf("count discoveries: %w", err)
	}
	return page.TotalElements, nil
}
