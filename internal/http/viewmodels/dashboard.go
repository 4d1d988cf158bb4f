package viewmodels

type DashboardKPI struct {
	Label string
	Value string
	Hint  string
}

type SpendBar struct {
	Label  string
	Value  string
	Height int
}

type CategoryShare struct {
	Name    string
	Value   string
	Count   int
	Percent int
}

type RenewalRow struct {
	ContractID    int64
	ApplicationID int64
	Application   string
	Vendor        string
	Date          string
	DaysToRenewal int
	Value         string
	AutoRenew     bool
}

type DashboardViewData struct {
	Layout         LayoutData
	KPIs           []DashboardKPI
	Spend          []SpendBar
	TopCategories  []CategoryShare
	Renewals       []RenewalRow
	NewDiscoveries []DiscoveryRow
}
