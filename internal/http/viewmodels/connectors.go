package viewmodels

type ConnectorAlert struct {
	Class   string
	Title   string
	Message string
}

type SourceStatusItem struct {
	Key        string
	Name       string
	Enabled    bool
	Detail     string
	Discovered int64
	Health     string
	HealthCSS  string
	LastSeen   string
	Attention  bool
}

type ConnectorsViewData struct {
	Layout       LayoutData
	Sources      []SourceStatusItem
	CostImport   SourceStatusItem
	Vault        SourceStatusItem
	SyncInterval string
	CanResync    bool
	Banner       *ConnectorAlert
}
