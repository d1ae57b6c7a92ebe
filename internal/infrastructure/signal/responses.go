package signal

import (
	"fmt"
	"net/http"
)

// The canned error pages for the static file endpoint. Each one carries
// a text/html body naming the offending input and mirrors the request's
// keep-alive behavior on the Connection header.

func writeErrorPage(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/html")
	if keepAlive(r) {
		w.Header().Set("Connection", "keep-alive")
	} else {
		w.Header().Set("Connection", "close")
	}
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// WriteBadRequest renders the 400 page naming the rejected request line.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, why string) {
	body := fmt.Sprintf("<html><head><title>Bad Request</title></head><body><h1>400 Bad Request</h1><p>%s</p></body></html>", why)
	writeErrorPage(w, r, http.StatusBadRequest, body)
}

// WriteNotFound renders the 404 page naming the missing target.
func WriteNotFound(w http.ResponseWriter, r *http.Request, target string) {
	body := fmt.Sprintf("<html><head><title>Not Found</title></head><body><h1>404 Not Found</h1><p>The resource '%s' was not found.</p></body></html>", target)
	writeErrorPage(w, r, http.StatusNotFound, body)
}

// WriteServerError renders the 500 page naming the failure.
func WriteServerError(w http.ResponseWriter, r *http.Request, what string) {
	body := fmt.Sprintf("<html><head><title>Internal Server Error</title></head><body><h1>500 Internal Server Error</h1><p>An error occurred in the request: '%s'</p></body></html>", what)
	writeErrorPage(w, r, http.StatusInternalServerError, body)
}

func keepAlive(r *http.Request) bool {
	if r.Header.Get("Connection") == "close" {
		return false
	}
	if r.ProtoMajor == 1 && r.ProtoMinor == 0 {
		return r.Header.Get("Connection") == "keep-alive"
	}
	return true
}
