package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data struct {
		Dir             string `yaml:"dir"`
		CredentialsFile string `yaml:"credentials_file"`
		PatientsFile    string `yaml:"patients_file"`
		NotesFile       string `yaml:"notes_file"`
	} `yaml:"data"`

	Output struct {
		Dir          string `yaml:"dir"`
		AuditLogFile string `yaml:"audit_log_file"`
	} `yaml:"output"`

	Security struct {
		LoginEvery Duration `yaml:"login_every"`
		LoginBurst int      `yaml:"login_burst"`
	} `yaml:"security"`
}

// Duration decodes "1m"-style yaml values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Load reads configuration from the first config file found, falling back to
// built-in defaults when none exists. WAREHOUSE_DATA_DIR and
// WAREHOUSE_OUTPUT_DIR environment variables override the file.
func Load() (*Config, error) {
	config := defaults()

	// Look for config in multiple locations
	configPaths := []string{
		"./configs/config.yaml",
		"../configs/config.yaml",
		"/etc/clinical-warehouse/config.yaml",
	}

	for _, path := range configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		configFile, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}

		if err := yaml.Unmarshal(configFile, config); err != nil {
			return nil, err
		}
		break
	}

	v := viper.New()
	v.SetEnvPrefix("WAREHOUSE")
	v.AutomaticEnv()

	if dir := v.GetString("DATA_DIR"); dir != "" {
		config.Data.Dir = dir
	}
	if dir := v.GetString("OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}

	return config, nil
}

func defaults() *Config {
	var config Config
	config.Data.Dir = "data"
	config.Data.CredentialsFile = "credentials.csv"
	config.Data.PatientsFile = "patients.csv"
	config.Data.NotesFile = "notes.csv"
	config.Output.Dir = "output"
	config.Output.AuditLogFile = "audit_log.csv"
	config.Security.LoginEvery = Duration(time.Minute)
	config.Security.LoginBurst = 5
	return &config
}

func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Data.Dir, c.Data.CredentialsFile)
}

func (c *Config) PatientsPath() string {
	return filepath.Join(c.Data.Dir, c.Data.PatientsFile)
}

func (c *Config) NotesPath() string {
	return filepath.Join(c.Data.Dir, c.Data.NotesFile)
}

func (c *Config) AuditLogPath() string {
	return filepath.Join(c.Output.Dir, c.Output.AuditLogFile)
}
