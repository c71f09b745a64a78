package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Mailbox drivers
const (
	MailboxMaildir = "maildir"
	MailboxIMAP    = "imap"
)

// Email backends
const (
	EmailConsole  = "console"
	EmailSendgrid = "sendgrid"
)

// Storage engines
const (
	StorageJSON     = "json"
	StorageSQLite   = "sqlite3"
	StoragePostgres = "postgres"
)

type (
	MailboxConfig struct {
		Driver    string `mapstructure:"driver" validate:"oneof=maildir imap"`
		Root      string `mapstructure:"root" validate:"required_if=Driver maildir"`
		Host      string `mapstructure:"host" validate:"required_if=Driver imap"`
		Port      int    `mapstructure:"port" validate:"min=1,max=65535"`
		Username  string `mapstructure:"username" validate:"required_if=Driver imap"`
		Password  string `mapstructure:"password"`
		Delimiter string `mapstructure:"delimiter" validate:"required"`
		Insecure  bool   `mapstructure:"insecure"`
	}

	EmailConfig struct {
		Backend        string `mapstructure:"backend" validate:"oneof=console sendgrid"`
		SendgridApiKey string `mapstructure:"sendgridApiKey" validate:"required_if=Backend sendgrid"`
	}

	StorageConfig struct {
		Engine string `mapstructure:"engine" validate:"oneof=json sqlite3 postgres"`
		Dir    string `mapstructure:"dir" validate:"required_if=Engine json"`
		DSN    string `mapstructure:"dsn" validate:"required_unless=Engine json"`
	}

	Config struct {
		Env              string        `mapstructure:"env"`
		Debug            bool          `mapstructure:"debug"`
		TestMode         bool          `mapstructure:"testMode"`
		AppName          string        `mapstructure:"appName" validate:"required"`
		Build            string        `mapstructure:"build"`
		DefaultFromEmail string        `mapstructure:"defaultFromEmail" validate:"required,email"`
		FillerEmail      string        `mapstructure:"fillerEmail" validate:"omitempty,email"`
		ReviewDeadline   string        `mapstructure:"reviewDeadline"`
		Seed             int64         `mapstructure:"seed"`
		RollbarToken     string        `mapstructure:"rollbarToken"`
		Mailbox          MailboxConfig `mapstructure:"mailbox"`
		Email            EmailConfig   `mapstructure:"email"`
		Storage          StorageConfig `mapstructure:"storage"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Python Course")
	v.SetDefault("build", "develop")
	v.SetDefault("defaultFromEmail", "noreply@example.com")
	v.SetDefault("fillerEmail", "")
	v.SetDefault("reviewDeadline", "9am on Thursday (sharp)")
	v.SetDefault("seed", int64(0))
	v.SetDefault("rollbarToken", "")

	v.SetDefault("mailbox.driver", MailboxMaildir)
	v.SetDefault("mailbox.root", "mail")
	v.SetDefault("mailbox.host", "")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.password", "")
	v.SetDefault("mailbox.delimiter", "/")
	v.SetDefault("mailbox.insecure", false)

	v.SetDefault("email.backend", EmailConsole)
	v.SetDefault("email.sendgridApiKey", "")

	v.SetDefault("storage.engine", StorageJSON)
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.dsn", "")
}

// NewConfig loads the configuration from defaults, `config/.env.<env>`, an optional config file and
// the environment (prefixed with the env name, e.g. `DEV_MAILBOX_HOST`).
func NewConfig(configFile ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting working directory")
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	if len(configFile) > 0 && configFile[0] != "" {
		v.SetConfigFile(configFile[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile[0])
		}
	}

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	conf.DefaultFromEmail = CleanString(conf.DefaultFromEmail, true /* lower */)
	conf.FillerEmail = CleanString(conf.FillerEmail, true /* lower */)
	return conf, nil
}

// DefaultFrom returns the sender address used for outgoing emails.
func (c *Config) DefaultFrom() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

// Validate checks the config struct tags and translates failures into a *ValidationError.
func (c *Config) Validate(validate *validator.Validate, translator ut.Translator) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Namespace(), Error: fe.Translate(translator)})
	}
	return NewValidationError(ErrInvalidConfiguration, fields...)
}
