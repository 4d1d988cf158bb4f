package viewmodels

type ApplicationListItem struct {
	ID          int64
	Name        string
	Vendor      string
	Category    string
	Owner       string
	Status      string
	MonthlyCost string
	Seats       int
	Users       int
	Renewal     string
	RenewalSoon bool
	LogoURL     string
}

type ApplicationsViewData struct {
	Layout        LayoutData
	Items         []ApplicationListItem
	Query         string
	Status        string
	Category      string
	Sort          string
	Statuses      []Option
	Categories    []Option
	Sorts         []Option
	Pagination    Pagination
	HasItems      bool
	EmptyStateMsg string
}

type ApplicationForm struct {
	ID              int64
	Name            string
	Vendor          string
	Domain          string
	Owner           string
	LogoURL         string
	CategoryID      string
	SubCategoryID   string
	MonthlyCost     string
	Currency        string
	BillingCycle    string
	Seats           string
	Users           string
	RenewalDate     string
	NextPaymentDate string
	Status          string
	Errors          map[string]string
}

type ApplicationFormViewData struct {
	Layout        LayoutData
	Form          ApplicationForm
	IsNew         bool
	Action        string
	Categories    []Option
	SubCategories []Option
	BillingCycles []Option
	Statuses      []Option
}

type UsageView struct {
	Active            int
	Moderate          int
	Inactive          int
	Unassigned        int
	Total             int
	ActivePercent     int
	ModeratePercent   int
	InactivePercent   int
	UnassignedPercent int
}

type SavingsView struct {
	ReclaimableSeats int
	PerSeat          string
	Monthly          string
	Annual           string
	Percent          string
}

type ApplicationUserRow struct {
	Email    string
	Name     string
	Source   string
	LastSeen string
	Bucket   string
}

type ContractRow struct {
	ID             int64
	ApplicationID  int64
	Application    string
	Vendor         string
	Status         string
	StartDate      string
	EndDate        string
	Renewal        string
	DaysToRenewal  int
	Value          string
	Monthly        string
	NoticeDeadline string
	AutoRenew      bool
}

type ApplicationShowViewData struct {
	Layout       LayoutData
	ID           int64
	Name         string
	Vendor       string
	Domain       string
	Category     string
	Owner        string
	Status       string
	BillingCycle string
	MonthlyCost  string
	AnnualCost   string
	Seats        int
	Users        int
	Renewal      string
	NextPayment  string
	LogoURL      string
	Usage        UsageView
	Savings      SavingsView
	Contracts    []ContractRow
	UserRows     []ApplicationUserRow
	OwnerError   string
}
