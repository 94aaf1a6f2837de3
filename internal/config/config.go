package config

import (
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	StoreDriverFirestore = "firestore"
	StoreDriverBolt      = "bolt"

	IdentityDriverFirebase = "firebase"
	IdentityDriverLocal    = "local"
)

// ServerConfig is a struct that contains configuration values for the server.
type ServerConfig struct {
	// AllowedOrigins is a list of URLs that the server will accept requests from.
	AllowedOrigins []string
	// Port is the port the server should run on.
	Port int
	// IsHTTPS controls the Secure flag of the session cookie.
	IsHTTPS bool
	// SessionCookieName is the name to use for the session cookie.
	SessionCookieName string
	// SessionCookieExpiration is the amount of time a session cookie is valid. Max 14 days with the
	// Firebase backend.
	SessionCookieExpiration time.Duration

	// SchoolDomain is the fixed domain of synthetic login addresses (<username>@<domain>).
	SchoolDomain string
	// AvatarBaseURL is prefixed to the username to build the default avatar.
	AvatarBaseURL string

	// StoreDriver selects the Directory Store backend, "firestore" or "bolt".
	StoreDriver string
	BoltPath    string
	// IdentityDriver selects the Identity Service backend, "firebase" or "local".
	IdentityDriver string
	// FirebaseCredentialsFile is the service account file used by the Firebase admin SDK.
	FirebaseCredentialsFile string
	// FirebaseAPIKey is the web API key used for password sign-in and reset mail.
	FirebaseAPIKey string
	// LocalIdentityPath is the credential file of the local identity backend.
	LocalIdentityPath string
	// SessionSecret signs session tokens issued by the local identity backend.
	SessionSecret string

	// SignupGraceDelay is waited before signing a freshly registered identity out.
	SignupGraceDelay time.Duration
	// SyncSuccessResetDelay and SyncErrorResetDelay return the sync indicator to idle.
	SyncSuccessResetDelay time.Duration
	SyncErrorResetDelay   time.Duration

	// The administrator created when the directory has no users yet.
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminName     string

	// SupportTemporaryPassword is set by the support password reset tool.
	SupportTemporaryPassword string
}

func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		AllowedOrigins:           []string{"http://localhost:3000"},
		Port:                     8080,
		SessionCookieName:        "elearning-session",
		SessionCookieExpiration:  time.Hour * 24 * 5,
		SchoolDomain:             "alirsyad.sch.id",
		AvatarBaseURL:            "https://api.dicebear.com/7.x/avataaars/svg?seed=",
		StoreDriver:              StoreDriverBolt,
		BoltPath:                 "elearning.db",
		IdentityDriver:           IdentityDriverLocal,
		FirebaseCredentialsFile:  "firebase-config.json",
		LocalIdentityPath:        "elearning-auth.db",
		SessionSecret:            "change-me",
		SignupGraceDelay:         500 * time.Millisecond,
		SyncSuccessResetDelay:    3 * time.Second,
		SyncErrorResetDelay:      5 * time.Second,
		BootstrapAdminUsername:   "admin",
		BootstrapAdminPassword:   "admin123",
		BootstrapAdminName:       "Admin Utama Informatika",
		SupportTemporaryPassword: "123456",
	}
}

// Load reads configuration from the environment (prefix PORTAL_) and an optional .env file, falling
// back to DefaultConfig for anything unset.
func Load(dotEnvPath string) (*ServerConfig, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
		}
	}

	conf := viper.New()
	def := DefaultConfig()

	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("allowedOrigins", strings.Join(def.AllowedOrigins, ","))
	conf.SetDefault("port", def.Port)
	conf.SetDefault("isHTTPS", def.IsHTTPS)
	conf.SetDefault("sessionCookieName", def.SessionCookieName)
	conf.SetDefault("sessionCookieExpiration", def.SessionCookieExpiration)
	conf.SetDefault("schoolDomain", def.SchoolDomain)
	conf.SetDefault("avatarBaseURL", def.AvatarBaseURL)
	conf.SetDefault("storeDriver", def.StoreDriver)
	conf.SetDefault("boltPath", def.BoltPath)
	conf.SetDefault("identityDriver", def.IdentityDriver)
	conf.SetDefault("firebaseCredentialsFile", def.FirebaseCredentialsFile)
	conf.SetDefault("firebaseAPIKey", def.FirebaseAPIKey)
	conf.SetDefault("localIdentityPath", def.LocalIdentityPath)
	conf.SetDefault("sessionSecret", def.SessionSecret)
	conf.SetDefault("signupGraceDelay", def.SignupGraceDelay)
	conf.SetDefault("syncSuccessResetDelay", def.SyncSuccessResetDelay)
	conf.SetDefault("syncErrorResetDelay", def.SyncErrorResetDelay)
	conf.SetDefault("bootstrapAdminUsername", def.BootstrapAdminUsername)
	conf.SetDefault("bootstrapAdminPassword", def.BootstrapAdminPassword)
	conf.SetDefault("bootstrapAdminName", def.BootstrapAdminName)
	conf.SetDefault("supportTemporaryPassword", def.SupportTemporaryPassword)

	conf.SetEnvPrefix("PORTAL")
	conf.AutomaticEnv()

	cfg := &ServerConfig{
		AllowedOrigins:           splitList(conf.GetString("allowedOrigins")),
		Port:                     conf.GetInt("port"),
		IsHTTPS:                  conf.GetBool("isHTTPS"),
		SessionCookieName:        conf.GetString("sessionCookieName"),
		SessionCookieExpiration:  conf.GetDuration("sessionCookieExpiration"),
		SchoolDomain:             strings.ToLower(conf.GetString("schoolDomain")),
		AvatarBaseURL:            conf.GetString("avatarBaseURL"),
		StoreDriver:              conf.GetString("storeDriver"),
		BoltPath:                 conf.GetString("boltPath"),
		IdentityDriver:           conf.GetString("identityDriver"),
		FirebaseCredentialsFile:  conf.GetString("firebaseCredentialsFile"),
		FirebaseAPIKey:           conf.GetString("firebaseAPIKey"),
		LocalIdentityPath:        conf.GetString("localIdentityPath"),
		SessionSecret:            conf.GetString("sessionSecret"),
		SignupGraceDelay:         conf.GetDuration("signupGraceDelay"),
		SyncSuccessResetDelay:    conf.GetDuration("syncSuccessResetDelay"),
		SyncErrorResetDelay:      conf.GetDuration("syncErrorResetDelay"),
		BootstrapAdminUsername:   conf.GetString("bootstrapAdminUsername"),
		BootstrapAdminPassword:   conf.GetString("bootstrapAdminPassword"),
		BootstrapAdminName:       conf.GetString("bootstrapAdminName"),
		SupportTemporaryPassword: conf.GetString("supportTemporaryPassword"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	glog.Infof("configuration loaded: store=%s identity=%s port=%d", cfg.StoreDriver, cfg.IdentityDriver, cfg.Port)
	return cfg, nil
}

func (c *ServerConfig) validate() error {
	switch c.StoreDriver {
	case StoreDriverFirestore, StoreDriverBolt:
	default:
		return errors.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.IdentityDriver {
	case IdentityDriverFirebase:
		if c.FirebaseAPIKey == "" {
			return errors.New("firebaseAPIKey is required with the firebase identity driver")
		}
	case IdentityDriverLocal:
		if c.SessionSecret == "" {
			return errors.New("sessionSecret is required with the local identity driver")
		}
	default:
		return errors.Errorf("unknown identity driver %q", c.IdentityDriver)
	}
	if c.SchoolDomain == "" {
		return errors.New("schoolDomain must not be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
