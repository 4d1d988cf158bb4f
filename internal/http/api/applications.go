package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/spend"
)

// applicationDetail is an application with its contracts and seat usage.
type applicationDetail struct {
	spend.Application
	AnnualCostCents int64                  `json:"annualCostCents"`
	Contracts       []spend.ContractDetail `json:"contracts"`
	Usage           spend.Usage            `json:"usage"`
	Savings         spend.SavingsEstimate  `json:"savings"`
}

type applicationUsage struct {
	ApplicationID int64                  `json:"applicationId"`
	Usage         spend.Usage            `json:"usage"`
	Savings       spend.SavingsEstimate  `json:"savings"`
	Users         []applicationUsageUser `json:"users"`
}

type applicationUsageUser struct {
	spend.DiscoveredUser
	Bucket string `json:"bucket"`
}

func (a *API) ListApplications(c *echo.Context) error {
	page, err := a.Store.Applications().List(c.Request().Context(), listParams(c, "status", "category", "owner"))
	if err != nil {
		return a.writeError(c, err)
	}
	return pageResponse(c, page)
}

func (a *API) GetApplication(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	ctx := c.Request().Context()
	app, err := a.Store.Applications().Get(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}
	contracts, err := a.Store.Contracts().ListByApplication(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}
	users, err := a.Store.Applications().ListUsers(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}

	today := a.today()
	usage := spend.UsageBreakdown(app.Seats, users, a.now())
	out := applicationDetail{
		Application:     app,
		AnnualCostCents: spend.AnnualCost(app),
		Contracts:       make([]spend.ContractDetail, 0, len(contracts)),
		Usage:           usage,
		Savings:         spend.Savings(app, usage),
	}
	for _, ct := range contracts {
		out.Contracts = append(out.Contracts, spend.DescribeContract(ct, today))
	}
	return c.JSON(http.StatusOK, out)
}

func (a *API) CreateApplication(c *echo.Context) error {
	var in spend.ApplicationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	app, err := a.Store.Applications().Create(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

func (a *API) UpdateApplication(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.ApplicationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	app, err := a.Store.Applications().Update(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (a *API) DeleteApplication(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Applications().Delete(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) SetApplicationStatus(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	app, err := a.Store.Applications().SetStatus(c.Request().Context(), id, strings.ToLower(strings.TrimSpace(body.Status)))
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (a *API) AssignApplicationOwner(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var body struct {
		Owner string `json:"owner"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	app, err := a.Store.Applications().AssignOwner(c.Request().Context(), id, strings.TrimSpace(body.Owner))
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

func (a *API) ApplicationUsage(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	ctx := c.Request().Context()
	app, err := a.Store.Applications().Get(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}
	users, err := a.Store.Applications().ListUsers(ctx, id)
	if err != nil {
		return a.writeError(c, err)
	}

	now := a.now()
	usage := spend.UsageBreakdown(app.Seats, users, now)
	out := applicationUsage{
		ApplicationID: app.ID,
		Usage:         usage,
		Savings:       spend.Savings(app, usage),
		Users:         make([]applicationUsageUser, 0, len(users)),
	}
	for _, u := range users {
		out.Users = append(out.Users, applicationUsageUser{DiscoveredUser: u, Bucket: spend.UsageBucket(u, now)})
	}
	return c.JSON(http.StatusOK, out)
}
