package viewmodels

type SettingsUsersForm struct {
	Email string
	Role  string
}

type SettingsUsersUserItem struct {
	ID          int64
	Email       string
	Role        string
	IsActive    bool
	LastLogin   string
	LastLoginIP string
	IsSelf      bool
	IsLastAdmin bool
	CanEditRole bool
	CanDelete   bool
}

type SettingsUsersEditForm struct {
	ID                 int64
	Email              string
	Role               string
	RoleDisabled       bool
	RoleDisabledReason string
}

type SettingsUsersViewData struct {
	Layout     LayoutData
	Users      []SettingsUsersUserItem
	OpenAdd    bool
	OpenEdit   bool
	OpenDelete bool
	Form       SettingsUsersForm
	EditForm   SettingsUsersEditForm
	DeleteID   int64
	DeleteMail string
	Alert      *Alert
}
