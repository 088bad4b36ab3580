package domain

const (
	DefaultAppName      = "SAS Finance"
	DefaultPrimaryColor = "#2563eb"
)

// AppSettings is the association's branding. Exactly one record exists system-wide.
type AppSettings struct {
	AppName      string `json:"appName"`
	PrimaryColor string `json:"primaryColor"`
	LogoURL      string `json:"logoUrl"`
}

// DefaultSettings is used whenever no settings row can be read.
func DefaultSettings() AppSettings {
	return AppSettings{
		AppName:      DefaultAppName,
		PrimaryColor: DefaultPrimaryColor,
		LogoURL:      "",
	}
}

// SettingsPatch lists the settings fields an update may change. Empty fields are left untouched.
type SettingsPatch struct {
	AppName      string
	PrimaryColor string
	LogoURL      string
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p == SettingsPatch{}
}
