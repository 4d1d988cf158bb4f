package viewmodels

type DiscoveryRow struct {
	ID              int64
	Name            string
	Domain          string
	Vendor          string
	Source          string
	SourceLabel     string
	State           string
	Users           int
	ActiveUsers     int
	LastSeen        string
	Managed         bool
	ApplicationID   int64
	ApplicationName string
	ManagedState    string
	RiskLevel       string
	Scopes          []string
}

type DiscoveryViewData struct {
	Layout        LayoutData
	Items         []DiscoveryRow
	Query         string
	State         string
	Source        string
	States        []Option
	Sources       []Option
	Counts        map[string]int64
	Pagination    Pagination
	HasItems      bool
	EmptyStateMsg string
}
