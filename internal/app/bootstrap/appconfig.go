// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging, CORS). AppConfig is everything specific to this service:
// the MongoDB connection, session cookies, the membership limits, and
// audit logging modes.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: ateuli-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Membership limits
	DefaultMaxSlots int // Endorsement slots granted to a newly verified geder
	GroupCapacity   int // Active members a group can hold

	// Audit logging modes: "all" (db+log), "db", "log", or "off"
	AuditLogAuth         string
	AuditLogMembership   string
	AuditLogVerification string
}
