package models

// SiteSettings is the singleton document holding portal-wide branding.
type SiteSettings struct {
	LogoURL      string `json:"logoUrl" mapstructure:"logoUrl" validate:"omitempty,httpurl"`
	HeroImageURL string `json:"heroImageUrl" mapstructure:"heroImageUrl" validate:"omitempty,httpurl"`
	SiteName     string `json:"siteName" mapstructure:"siteName" validate:"required"`
}

// DefaultSiteSettings are served until an administrator saves settings.
func DefaultSiteSettings() *SiteSettings {
	return &SiteSettings{
		LogoURL:      "https://www.alirsyad.or.id/wp-content/uploads/download/alirsyad-alislamiyyah.png",
		HeroImageURL: "https://cdn.fpt-is.com/vi/he-thong-elearning-1.png",
		SiteName:     "Informatika SMP Al Irsyad Surakarta",
	}
}
