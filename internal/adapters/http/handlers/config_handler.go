package handlers

import "net/http"

const missingClientID = "MISSING_ID"

type discordConfigResponse struct {
	ClientID      string `json:"client_id"`
	LatestVersion string `json:"latest_version"`
}

// DiscordConfigHandler echoes the Discord application id and the latest client
// version so the desktop client can offer updates.
func DiscordConfigHandler(clientID, latestVersion string) http.HandlerFunc {
	if clientID == "" {
		clientID = missingClientID
	}
	body := discordConfigResponse{ClientID: clientID, LatestVersion: latestVersion}
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, body)
	}
}
