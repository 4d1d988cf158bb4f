package handlers

import (
	"context"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/store"
)

func (h *Handlers) HandleConnectors(c *echo.Context) error {
	ctx := c.Request().Context()
	layout, err := h.LayoutData(ctx, c, "Connectors")
	if err != nil {
		return h.RenderError(c, err)
	}

	cfg := h.Cfg
	sources := []viewmodels.SourceStatusItem{
		{Key: discovery.SourceOkta, Enabled: cfg.Okta.Enabled(), Detail: cfg.Okta.Domain},
		{Key: discovery.SourceGoogleWorkspace, Enabled: cfg.GoogleWorkspace.Enabled(), Detail: cfg.GoogleWorkspace.AdminEmail},
		{Key: discovery.SourceEntra, Enabled: cfg.Entra.Enabled(), Detail: cfg.Entra.TenantID},
		{Key: discovery.SourceAWSIdentityCenter, Enabled: cfg.AWSIdentity.Enabled(), Detail: cfg.AWSIdentity.Region},
		{Key: discovery.SourceManual, Enabled: true, Detail: "Added through the API"},
	}
	anyEnabled := false
	for i := range sources {
		sources[i].Name = discovery.SourceDisplayName(sources[i].Key)
		n, lastSeen, err := h.discoveredBySource(ctx, sources[i].Key)
		if err != nil {
			return h.RenderError(c, err)
		}
		sources[i].Discovered = n
		if sources[i].Key != discovery.SourceManual {
			gradeSource(&sources[i], cfg.DiscoverySyncInterval, h.now(), lastSeen)
		}
		if sources[i].Enabled && sources[i].Key != discovery.SourceManual {
			anyEnabled = true
		}
	}

	data := viewmodels.ConnectorsViewData{
		Layout:  layout,
		Sources: sources,
		CostImport: viewmodels.SourceStatusItem{
			Key:     "aws_cost_explorer",
			Name:    "AWS Cost Explorer",
			Enabled: cfg.AWSCost.Enabled(),
			Detail:  costImportDetail(cfg.AWSCost.Application),
		},
		Vault: viewmodels.SourceStatusItem{
			Key:     "vault",
			Name:    "Vault secrets",
			Enabled: cfg.Vault.Enabled(),
			Detail:  cfg.Vault.Addr,
		},
		CanResync: layout.IsAdmin && h.Syncer != nil,
	}
	if cfg.JobsEnabled && cfg.DiscoverySyncInterval > 0 {
		data.SyncInterval = compactDuration(cfg.DiscoverySyncInterval)
	}
	switch {
	case cfg.UseMockData:
		data.Banner = &viewmodels.ConnectorAlert{
			Class:   "alert-info",
			Title:   "Demo data",
			Message: "Sources are simulated while mock mode is on.",
		}
	case !anyEnabled:
		data.Banner = &viewmodels.ConnectorAlert{
			Class:   "alert-warning",
			Title:   "No identity provider configured",
			Message: "Set Okta, Google Workspace, Entra ID or AWS Identity Center credentials to discover applications.",
		}
	}
	return h.RenderComponent(c, views.ConnectorsPage(data))
}

// discoveredBySource returns how many discoveries a source produced and when it last saw
// one. lastSeen is zero when it produced none.
func (h *Handlers) discoveredBySource(ctx context.Context, source string) (n int64, lastSeen time.Time, err error) {
	params := store.ListParams{Page: 1, Size: 1, Sort: "last_seen", Desc: true}.WithFilter("source", source)
	page, err := h.Store.Discoveries().List(ctx, params)
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(page.Content) > 0 {
		lastSeen = page.Content[0].LastSeenAt
	}
	return page.TotalElements, lastSeen, nil
}

func costImportDetail(application string) string {
	if application == "" {
		return ""
	}
	return "Monthly totals are recorded on " + application + "."
}
