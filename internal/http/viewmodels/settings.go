package viewmodels

type SettingsForm struct {
	OrgName              string
	Currency             string
	RenewalWindowDays    string
	FiscalYearStartMonth string
	Errors               map[string]string
}

type ReminderRow struct {
	ContractID  int64
	Application string
	RenewalDate string
	CreatedAt   string
}

type SettingsViewData struct {
	Layout    LayoutData
	Form      SettingsForm
	Months    []Option
	Reminders []ReminderRow
}
