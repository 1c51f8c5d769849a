package config

const (
	defaultDataDir                = "~/.local/share/fieldcap"
	defaultLogDir                 = "~/.local/share/fieldcap/logs"
	defaultAPIBind                = "127.0.0.1:7497"
	defaultBackendTimeoutSeconds  = 30
	defaultBlobDriver             = "fs"
	defaultBlobDir                = "~/.local/share/fieldcap/blobs"
	defaultSignedURLDays          = 365
	defaultGPSDAddress            = "localhost:2947"
	defaultGPSTimeoutSeconds      = 10
	defaultGeocodeURL             = "https://nominatim.openstreetmap.org/reverse"
	defaultGeocodeTimeoutSeconds  = 5
	defaultProviderTimeoutSeconds = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// defaultProviders is the direct IP-geolocation fallback order. Appending
// a name here (and registering it in internal/geo/ipgeo) adds a provider.
var defaultProviders = []string{"ip-api", "ipapi.co", "ipinfo"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Backend: Backend{
			RequestTimeout: defaultBackendTimeoutSeconds,
		},
		Blob: Blob{
			Driver:        defaultBlobDriver,
			Dir:           defaultBlobDir,
			SignedURLDays: defaultSignedURLDays,
		},
		Geo: Geo{
			GPSDAddress:            defaultGPSDAddress,
			GPSTimeoutSeconds:      defaultGPSTimeoutSeconds,
			GeocodeURL:             defaultGeocodeURL,
			GeocodeTimeoutSeconds:  defaultGeocodeTimeoutSeconds,
			Providers:              append([]string(nil), defaultProviders...),
			ProviderTimeoutSeconds: defaultProviderTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
