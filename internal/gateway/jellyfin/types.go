package jellyfin

// Wire types for the Jellyfin user API. Field names follow Jellyfin's
// PascalCase JSON convention.

type authenticateRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authenticateResponse struct {
	User        user   `json:"User"`
	AccessToken string `json:"AccessToken"`
}

type user struct {
	ID     string     `json:"Id"`
	Name   string     `json:"Name"`
	Policy userPolicy `json:"Policy"`
}

type userPolicy struct {
	IsAdministrator bool `json:"IsAdministrator"`
}
