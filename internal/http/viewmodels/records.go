package viewmodels

import "github.com/stackspend/stackspend/internal/spend"

type ClientRow struct {
	ID      int64
	Name    string
	Email   string
	Company string
	Phone   string
	Active  bool
}

type ClientForm struct {
	ID          int64
	Name        string
	Email       string
	Company     string
	Phone       string
	Address     string
	Description string
	Active      bool
	Errors      map[string]string
}

type ClientsViewData struct {
	Layout        LayoutData
	Items         []ClientRow
	Query         string
	Pagination    Pagination
	HasItems      bool
	EmptyStateMsg string
	Form          ClientForm
	OpenForm      bool
}

type CategoriesViewData struct {
	Layout     LayoutData
	Tree       []spend.Category
	FieldTypes []string
	Alert      *Alert
}

type ContractForm struct {
	ID            int64
	ApplicationID string
	Vendor        string
	Status        string
	StartDate     string
	EndDate       string
	RenewalDate   string
	Value         string
	Currency      string
	TermMonths    string
	NoticeDays    string
	AutoRenew     bool
	Notes         string
	Errors        map[string]string
}

type ContractsViewData struct {
	Layout         LayoutData
	Items          []ContractRow
	Status         string
	RenewingWithin string
	Statuses       []Option
	Windows        []Option
	Applications   []Option
	Pagination     Pagination
	HasItems       bool
	EmptyStateMsg  string
	Form           ContractForm
	OpenForm       bool
}

type CalendarEntryView struct {
	Name      string
	Vendor    string
	Date      string
	Cost      string
	Kind      string
	Href      string
	AutoRenew bool
}

type CalendarMonthView struct {
	Name    string
	Entries []CalendarEntryView
	Total   string
}

type CalendarViewData struct {
	Layout   LayoutData
	Year     int
	PrevYear int
	NextYear int
	Months   []CalendarMonthView
	Total    string
	Count    int
}

type LeadRow struct {
	ID      int64
	Name    string
	Email   string
	Company string
	Source  string
	Status  string
	Created string
}

type LeadForm struct {
	Name    string
	Email   string
	Company string
	Source  string
	Notes   string
	Errors  map[string]string
}

type LeadsViewData struct {
	Layout     LayoutData
	Items      []LeadRow
	Status     string
	Statuses   []Option
	Pagination Pagination
	HasItems   bool
	Form       LeadForm
	OpenForm   bool
}
