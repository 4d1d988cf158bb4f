package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/discovery"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

// discoveryView is a discovery with its derived posture.
type discoveryView struct {
	spend.Discovery
	Managed      bool   `json:"managed"`
	ManagedState string `json:"managedState"`
	Reason       string `json:"managedReason"`
	RiskScore    int32  `json:"riskScore"`
	RiskLevel    string `json:"riskLevel"`
	ActiveUsers  int    `json:"activeUsers"`
}

func (a *API) describeDiscovery(d spend.Discovery) discoveryView {
	p := discovery.Assess(d, a.now(), a.freshness())
	return discoveryView{
		Discovery:    d,
		Managed:      d.Managed(),
		ManagedState: p.ManagedState,
		Reason:       p.Reason,
		RiskScore:    p.RiskScore,
		RiskLevel:    p.RiskLevel,
		ActiveUsers:  p.ActiveUsers,
	}
}

func (a *API) ListDiscoveries(c *echo.Context) error {
	params := listParams(c, "state", "source", "managed")
	if params.Sort == "" {
		params.Sort, params.Desc = "last_seen", true
	}
	page, err := a.Store.Discoveries().List(c.Request().Context(), params)
	if err != nil {
		return a.writeError(c, err)
	}
	return pageResponse(c, store.Map(page, a.describeDiscovery))
}

func (a *API) GetDiscovery(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	d, err := a.Store.Discoveries().Get(c.Request().Context(), id)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a.describeDiscovery(d))
}

// CreateDiscovery records a manual observation. Repeating it merges into the same
// discovery by canonical key.
func (a *API) CreateDiscovery(c *echo.Context) error {
	var in discovery.ManualInput
	if err := bind(c, &in); err != nil {
		return err
	}
	obs, err := discovery.ManualObservation(in, a.now())
	if err != nil {
		return a.writeError(c, err)
	}
	d, err := a.syncer().Apply(c.Request().Context(), obs)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, a.describeDiscovery(d))
}

// AdoptDiscovery turns the discovery into a managed application and returns that application.
func (a *API) AdoptDiscovery(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	app, err := a.Store.Discoveries().Adopt(c.Request().Context(), id)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (a *API) IgnoreDiscovery(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	d, err := a.Store.Discoveries().SetState(c.Request().Context(), id, spend.DiscoveryStateIgnored)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, a.describeDiscovery(d))
}
