// Package handlers implements spec §6's HTTP surface: account, storage,
// friends, and messages endpoints, each an errors.Is switch over its
// service's sentinel errors mapped to the exact OK:/ERR:/WARN: wire
// strings spec §7 fixes.
package handlers

import (
	"encoding/json"
	"net/http"
)

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(body))
}

func writeOK(w http.ResponseWriter, payload string) {
	if payload == "" {
		writeText(w, "OK")
		return
	}
	writeText(w, "OK:"+payload)
}

func writeErr(w http.ResponseWriter, kind string) {
	writeText(w, "ERR:"+kind)
}

func writeWarn(w http.ResponseWriter, kind string) {
	writeText(w, "WARN:"+kind)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
