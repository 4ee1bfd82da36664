package webserver

import (
	"encoding/json"
	"net/http"
)

type toastData struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

type toast struct {
	Type string    `json:"type"`
	Data toastData `json:"data"`
}

func toastMessage(title, icon string) toast {
	return toast{Type: "toast", Data: toastData{Title: title, Icon: icon}}
}

// errorBody matches the backend's {"detail": ...} error schema so the dashboard
// handles both the same way.
type errorBody struct {
	Detail string `json:"detail"`
}

// durationBody is the body of a start request.
type durationBody struct {
	Duration int `json:"duration"`
}

// stateBody describes the controller for GET /api/state.
type stateBody struct {
	Root     string   `json:"root"`
	Known    []string `json:"known"`
	Pending  int      `json:"pending"`
	Draining bool     `json:"draining"`
	Fading   []string `json:"fading"`
	Viewers  int      `json:"viewers"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
