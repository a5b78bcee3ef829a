package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the host shell configuration.
type Config struct {
	BindAddr                   string        `envconfig:"BIND_ADDR"                    yaml:"bind_addr"`
	GracefulShutdownTimeout    time.Duration `envconfig:"GRACEFUL_SHUTDOWN_TIMEOUT"    yaml:"-"`
	HealthCheckInterval        time.Duration `envconfig:"HEALTHCHECK_INTERVAL"         yaml:"-"`
	HealthCheckCriticalTimeout time.Duration `envconfig:"HEALTHCHECK_CRITICAL_TIMEOUT" yaml:"-"`
	Variant                    string        `envconfig:"WIDGET_VARIANT"               yaml:"variant"`
	ReturnType                 string        `envconfig:"WIDGET_RETURN_TYPE"           yaml:"return_type"`
	DataSourcePath             string        `envconfig:"DATASOURCE_PATH"              yaml:"datasource_path"`
	MemberServiceURL           string        `envconfig:"MEMBER_SERVICE_URL"           yaml:"member_service_url"`
	MemberFetchTimeout         time.Duration `envconfig:"MEMBER_FETCH_TIMEOUT"         yaml:"member_fetch_timeout"`
	PublishResolution          time.Duration `envconfig:"PUBLISH_RESOLUTION"           yaml:"publish_resolution"`
	BatchWindow                time.Duration `envconfig:"BATCH_WINDOW"                 yaml:"batch_window"`
}

// Get returns the default config with any modifications through environment variables.
func Get() (*Config, error) {
	cfg := &Config{
		BindAddr:                   ":8080",
		GracefulShutdownTimeout:    5 * time.Second,
		HealthCheckInterval:        30 * time.Second,
		HealthCheckCriticalTimeout: 90 * time.Second,
		Variant:                    "dropdown",
		ReturnType:                 "id",
		DataSourcePath:             "testdata/datasource.json",
		MemberServiceURL:           "",
		MemberFetchTimeout:         5 * time.Second,
		PublishResolution:          100 * time.Millisecond,
		BatchWindow:                20 * time.Millisecond,
	}

	return cfg, envconfig.Process("", cfg)
}

// OuterConfig is the envelope of a widget file: the kind of definition, and the definition itself.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// WidgetKind is the only kind of definition FromYaml accepts.
const WidgetKind = "widget"

// FromYaml overlays the widget definition in the yaml file at path onto cfg. Fields the file
// omits keep their current value. Keys are snake_case: viper folds the case of every key it reads.
func FromYaml(path string, cfg *Config) error {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading widget config %s", path)
	}

	outer := &OuterConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return errors.Wrap(err, "decoding widget config envelope")
	}
	if outer.Kind != WidgetKind {
		return errors.Errorf("unsupported config kind %q in %s", outer.Kind, path)
	}

	def, err := yaml.Marshal(outer.Def)
	if err != nil {
		return errors.Wrap(err, "re-encoding widget definition")
	}
	return errors.Wrap(yaml.Unmarshal(def, cfg), "decoding widget definition")
}
