package config

// EnvPrefix is passed to envconfig; individual fields carry the full variable
// name in their tags, so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "HARMONIA_DB_DSN"
	EnvDBHost = "HARMONIA_DB_HOST"
	EnvDBUser = "HARMONIA_DB_USER"
	EnvDBName = "HARMONIA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
