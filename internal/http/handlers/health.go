package handlers

import (
	"net/http"
	"time"
)

type pingResponse struct {
	OK        bool           `json:"ok"`
	Time      string         `json:"time"`
	Env       string         `json:"env"`
	Storage   storageStatus  `json:"storage"`
	Generator string         `json:"generator"`
	Styles    []string       `json:"styles"`
	WriteTest *writeTestJSON `json:"writeTest,omitempty"`
}

type storageStatus struct {
	Backend    string `json:"backend"`
	Configured bool   `json:"configured"`
}

type writeTestJSON struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Ping reports liveness and wiring. ?probe=write adds a storage write test
// whose failure is reported in the body, never as an error status.
func (a *App) Ping(w http.ResponseWriter, r *http.Request) {
	probe := a.Pipeline.Probe(r.Context(), r.URL.Query().Get("probe") == "write")
	resp := pingResponse{
		OK:        true,
		Time:      a.now().UTC().Format(time.RFC3339Nano),
		Env:       a.AppEnv,
		Storage:   storageStatus{Backend: probe.StorageBackend, Configured: probe.StorageConfigured},
		Generator: probe.Generator,
		Styles:    probe.Styles,
	}
	if wt := probe.WriteTest; wt != nil {
		resp.WriteTest = &writeTestJSON{OK: wt.OK, URL: wt.URL, Error: wt.Error}
	}
	a.json(w, http.StatusOK, resp)
}
