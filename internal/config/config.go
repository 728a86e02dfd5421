// =============================================================================
// ODS Sync - Configuration Module
// =============================================================================
//
// This module loads and validates the application configuration:
//   1. Main Config (config.yaml): file locations, sheet names, server address
//   2. Credential overlay (.env): DATABASE_URL and friends, loaded via dotenv
//
// The configuration is an explicitly constructed object with caller-controlled
// lifetime. Nothing in this package is memoized at process level; every
// component receives the Settings it needs by parameter.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is used to derive the per-user data directory.
const AppName = "ods-sync"

// Settings holds the resolved application configuration.
type Settings struct {
	// DataDir is the directory holding the live workbook, the pending queue,
	// backups and logs. Defaults to the per-user config dir for AppName.
	DataDir string `yaml:"data_dir"`

	// ResourceDir is the directory holding the clean workbook template and
	// the invoice templates shipped with the application.
	ResourceDir string `yaml:"resource_dir"`

	// WorkbookFile is the live workbook file name inside DataDir.
	WorkbookFile string `yaml:"workbook_file"`

	// QueueFile is the pending-operations JSONL file name inside DataDir.
	QueueFile string `yaml:"queue_file"`

	// TemplateFile is the clean workbook template inside ResourceDir, used
	// as the known-good baseline for full rebuilds.
	TemplateFile string `yaml:"template_file"`

	// InvoiceTemplates maps an invoice type ("clausulada"/"no_clausulada")
	// to its template file inside ResourceDir.
	InvoiceTemplates map[string]string `yaml:"invoice_templates"`

	// SheetNames are the preferred target sheets, looked up case-insensitively.
	// When none exist the workbook's active sheet is used instead.
	SheetNames []string `yaml:"sheet_names"`

	// DatabaseURL is the Postgres connection string for the remote source of
	// truth. The DATABASE_URL environment variable takes precedence.
	DatabaseURL string `yaml:"database_url"`

	// ListenAddr is the bind address for the HTTP facade.
	ListenAddr string `yaml:"listen_addr"`

	// LogFile is the engine log file. Relative paths resolve under DataDir.
	LogFile string `yaml:"log_file"`

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Load reads the configuration file, overlays the .env credential file and
// applies defaults. A missing config file is not an error; defaults apply.
func Load(configPath string) (*Settings, error) {
	var settings Settings

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&settings)
	loadEnvOverlay(&settings)

	if err := validate(&settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &settings, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(s *Settings) {
	if s.DataDir == "" {
		s.DataDir = defaultDataDir()
	}
	if s.ResourceDir == "" {
		s.ResourceDir = "resources"
	}
	if s.WorkbookFile == "" {
		s.WorkbookFile = "ODS 2026.xlsx"
	}
	if s.QueueFile == "" {
		s.QueueFile = "ODS 2026 pendiente.jsonl"
	}
	if s.TemplateFile == "" {
		s.TemplateFile = "ods_2026.xlsx"
	}
	if len(s.InvoiceTemplates) == 0 {
		s.InvoiceTemplates = map[string]string{
			"clausulada":    "clausulada.xlsx",
			"no_clausulada": "no_clausulada.xlsx",
		}
	}
	if len(s.SheetNames) == 0 {
		s.SheetNames = []string{"ODS General", "ODS Filtrada"}
	}
	if s.ListenAddr == "" {
		s.ListenAddr = "127.0.0.1:8765"
	}
	if s.LogFile == "" {
		s.LogFile = filepath.Join("logs", "excel.log")
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

// loadEnvOverlay reads DataDir/.env then ./.env without overriding variables
// already present in the environment, and applies credential overrides.
func loadEnvOverlay(s *Settings) {
	// The .env files are optional; load errors are not reported.
	_ = godotenv.Load(filepath.Join(s.DataDir, ".env"))
	_ = godotenv.Load(".env")

	if url := os.Getenv("DATABASE_URL"); url != "" {
		s.DatabaseURL = url
	}
}

// validate rejects configurations the engine cannot run with.
func validate(s *Settings) error {
	if s.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if s.WorkbookFile == "" || s.QueueFile == "" {
		return fmt.Errorf("workbook_file and queue_file must not be empty")
	}
	for tipo, file := range s.InvoiceTemplates {
		if file == "" {
			return fmt.Errorf("invoice template for %q must not be empty", tipo)
		}
	}
	return nil
}

// defaultDataDir resolves the per-user data directory for the application.
func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return AppName
		}
		base = home
	}
	return filepath.Join(base, AppName)
}

// WorkbookPath returns the absolute path of the live workbook.
func (s *Settings) WorkbookPath() string {
	return filepath.Join(s.DataDir, s.WorkbookFile)
}

// QueuePath returns the absolute path of the pending-operations queue.
func (s *Settings) QueuePath() string {
	return filepath.Join(s.DataDir, s.QueueFile)
}

// TemplatePath returns the path of the clean workbook template.
func (s *Settings) TemplatePath() string {
	return filepath.Join(s.ResourceDir, s.TemplateFile)
}

// InvoiceTemplatePath returns the template path for an invoice type.
func (s *Settings) InvoiceTemplatePath(tipo string) (string, error) {
	file, ok := s.InvoiceTemplates[tipo]
	if !ok {
		return "", fmt.Errorf("no invoice template configured for type %q", tipo)
	}
	return filepath.Join(s.ResourceDir, file), nil
}

// LogPath returns the log file path, resolving relative paths under DataDir.
func (s *Settings) LogPath() string {
	if filepath.IsAbs(s.LogFile) {
		return s.LogFile
	}
	return filepath.Join(s.DataDir, s.LogFile)
}
