package viewmodels

type ToastViewData struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type LayoutData struct {
	Title          string
	CSRFToken      string
	UserEmail      string
	UserRole       string
	IsAdmin        bool
	OrgName        string
	Toast          *ToastViewData
	ActivePath     string
	NewDiscoveries int64
}

// Active reports whether the nav entry for prefix should be highlighted.
func (l LayoutData) Active(prefix string) bool {
	if prefix == "/" {
		return l.ActivePath == "/"
	}
	return l.ActivePath == prefix || len(l.ActivePath) > len(prefix) && l.ActivePath[:len(prefix)+1] == prefix+"/"
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

type Alert struct {
	Title       string
	Message     string
	Destructive bool
}

// Pagination carries 1-based page numbers plus ready-made links that keep the active filters.
type Pagination struct {
	Page        int
	PerPage     int
	TotalPages  int
	TotalCount  int64
	ShowingFrom int
	ShowingTo   int
	PrevURL     string
	NextURL     string
}
