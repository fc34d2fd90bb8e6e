// Package youtube uploads finished videos with the YouTube Data API v3.
//
// Credentials are an OAuth client plus a long-lived refresh token; the access
// token is refreshed on demand through golang.org/x/oauth2. Upload failures
// are tagged services.ErrUpload so the distribution stage can switch to the
// fallback notification.
package youtube
