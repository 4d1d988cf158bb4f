package viewmodels

type LoginViewData struct {
	CSRFToken    string
	Email        string
	Next         string
	ErrorMessage string
	// SignedInAs is set when a session already exists; the form still renders.
	SignedInAs string
	DemoMode   bool
	Toast      *ToastViewData
}
