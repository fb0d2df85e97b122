package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/security"
)

const maxFormMemory = 32 << 20

// Sanitize is the single sanitization boundary for business routes. Path
// segments and query parameters are checked on every request; JSON bodies and
// multipart form fields (including file names) are checked and replaced with
// their cleaned versions before any handler sees them. File contents are left
// alone: documents go to storage as-is and never reach an interpreter.
//
// The webhook route is mounted outside this middleware: its raw bytes must
// reach the signature verifier untouched.
func Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := checkPath(r.URL); err != nil {
			reject(w, err)
			return
		}

		for _, values := range r.URL.Query() {
			for _, v := range values {
				if _, err := security.SanitizeString(v); err != nil {
					reject(w, err)
					return
				}
			}
		}

		ct := r.Header.Get("Content-Type")
		switch {
		case r.Body != nil && strings.HasPrefix(ct, "application/json"):
			if !sanitizeJSONBody(w, r) {
				return
			}
		case r.Body != nil && strings.HasPrefix(ct, "multipart/form-data"):
			if !sanitizeMultipart(w, r) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func sanitizeJSONBody(w http.ResponseWriter, r *http.Request) bool {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return false
	}
	_ = r.Body.Close()

	if len(raw) > 0 {
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return false
		}
		clean, err := security.SanitizeValue(payload)
		if err != nil {
			reject(w, err)
			return false
		}
		cleaned, err := json.Marshal(clean)
		if err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return false
		}
		raw = cleaned
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	r.ContentLength = int64(len(raw))
	return true
}

// sanitizeMultipart parses the form once; the handler's own
// ParseMultipartForm call then reuses the cached, already-cleaned form.
func sanitizeMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return false
	}

	// ParseMultipartForm copies values into Form and PostForm, so all three
	// views have to be rewritten.
	for _, vals := range []url.Values{r.Form, r.PostForm, url.Values(r.MultipartForm.Value)} {
		if err := sanitizeValues(vals); err != nil {
			reject(w, err)
			return false
		}
	}

	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			clean, err := security.SanitizeString(fh.Filename)
			if err != nil {
				reject(w, err)
				return false
			}
			fh.Filename = clean
		}
	}
	return true
}

func sanitizeValues(vals url.Values) error {
	for key, values := range vals {
		for i, v := range values {
			clean, err := security.SanitizeString(v)
			if err != nil {
				return err
			}
			vals[key][i] = clean
		}
	}
	return nil
}

// checkPath rejects injection patterns in the request path, in both decoded
// and escaped form so encoded traversal sequences are caught either way.
func checkPath(u *url.URL) error {
	if _, err := security.SanitizeString(u.Path); err != nil {
		return err
	}
	if esc := u.EscapedPath(); esc != u.Path {
		if _, err := security.SanitizeString(esc); err != nil {
			return err
		}
	}
	return nil
}

func reject(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrMaliciousInput) {
		http.Error(w, "request rejected", http.StatusBadRequest)
		return
	}
	http.Error(w, "invalid input", http.StatusBadRequest)
}
