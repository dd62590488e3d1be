package http

import (
	"net/http"
)

// HandleHealth returns a simple health check response.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type appLinkDetail struct {
	AppIDs     []string         `json:"appIDs"`
	Components []appLinkPattern `json:"components"`
}

type appLinkPattern struct {
	Path string `json:"/"`
}

type appSiteAssociation struct {
	AppLinks struct {
		Details []appLinkDetail `json:"details"`
	} `json:"applinks"`
}

// AppleAppSiteAssociation serves the universal link manifest Plaid's iOS
// OAuth redirect relies on.
func AppleAppSiteAssociation(appIDs []string) http.HandlerFunc {
	var doc appSiteAssociation
	doc.AppLinks.Details = []appLinkDetail{{
		AppIDs: appIDs,
		Components: []appLinkPattern{
			{Path: "/plaid"},
			{Path: "/plaid/*"},
		},
	}}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
		writeJSON(w, http.StatusOK, doc)
	}
}
