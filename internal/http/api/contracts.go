package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

func (a *API) ListContracts(c *echo.Context) error {
	params := listParams(c, "status", "renewing_within")
	if raw := strings.TrimSpace(c.QueryParam("applicationId")); raw != "" {
		params = params.WithFilter("application", raw)
	}
	page, err := a.Store.Contracts().List(c.Request().Context(), params)
	if err != nil {
		return a.writeError(c, err)
	}
	today := a.today()
	return pageResponse(c, store.Map(page, func(ct spend.Contract) spend.ContractDetail {
		return spend.DescribeContract(ct, today)
	}))
}

// ListRenewals returns non-cancelled contracts renewing between today and today+days,
// soonest first.
func (a *API) ListRenewals(c *echo.Context) error {
	days := defaultRenewalDays
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxRenewalDays {
			return c.JSON(http.StatusUnprocessableEntity, Error{
				Code:    CodeInvalidInput,
				Message: "Validation failed.",
				Fields:  map[string]string{"days": "Must be a whole number between 0 and " + strconv.Itoa(maxRenewalDays) + "."},
			})
		}
		days = n
	}
	today := a.today()
	contracts, err := a.Store.Contracts().ListRenewingBetween(c.Request().Context(), today, today.AddDays(days))
	if err != nil {
		return a.writeError(c, err)
	}
	out := make([]spend.ContractDetail, 0, len(contracts))
	for _, ct := range contracts {
		out = append(out, spend.DescribeContract(ct, today))
	}
	return c.JSON(http.StatusOK, out)
}

func (a *API) GetContract(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	ct, err := a.Store.Contracts().Get(c.Request().Context(), id)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, spend.DescribeContract(ct, a.today()))
}

func (a *API) CreateContract(c *echo.Context) error {
	var in spend.ContractInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ct, err := a.Store.Contracts().Create(c.Request().Context(), in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, spend.DescribeContract(ct, a.today()))
}

func (a *API) UpdateContract(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	var in spend.ContractInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ct, err := a.Store.Contracts().Update(c.Request().Context(), id, in)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, spend.DescribeContract(ct, a.today()))
}

func (a *API) DeleteContract(c *echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return notFound(c)
	}
	if err := a.Store.Contracts().Delete(c.Request().Context(), id); err != nil {
		return a.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
