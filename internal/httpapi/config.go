package httpapi

// maxBodyBytes bounds the request body size accepted on JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the maximum request body size (0 resets to
// the 1 MiB default).
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout holds the translation timeout, in whole seconds, set with
// SetInferTimeoutSeconds (0 = none). The handlers in this package do not
// read it.
var inferTimeout int

// SetInferTimeoutSeconds sets inferTimeout, storing negative values as 0.
func SetInferTimeoutSeconds(sec int) {
	if sec < 0 {
		sec = 0
	}
	inferTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is mounted.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
)

// SetCORSOptions configures CORS behavior for the mux built by NewMux.
func SetCORSOptions(enabled bool, origins []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
}
