package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/pkg/logging"
)

const Production = "production"

const (
	StoreBackendMemory   = "memory"
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"

	PersistenceRequired   = "required"
	PersistenceBestEffort = "best-effort"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"capitalgate"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type StoreOptions struct {
	// Backend selects the record-store implementation: memory, file or postgres.
	Backend string `env:"STORE_BACKEND" envDefault:"file"`
	// FileRoot is the data directory for the file backend.
	FileRoot string `env:"STORE_FILE_ROOT" envDefault:"./data"`
	// PersistenceMode is "required" (store failures propagate) or
	// "best-effort" (failed writes are logged and dropped).
	PersistenceMode string `env:"STORE_PERSISTENCE_MODE" envDefault:"required"`
}

type GovernanceOptions struct {
	// ProposalDueDays is the due horizon for seeded proposal-phase board
	// tasks. The funding-phase horizon is always exactly double.
	ProposalDueDays int `env:"GOVERNANCE_PROPOSAL_DUE_DAYS" envDefault:"5"`

	// Committee-side reviewers for change governance. These roles have no
	// per-project contact, so they are configured deployment-wide.
	ReviewEmail   string `env:"GOVERNANCE_REVIEW_EMAIL"`
	ReviewName    string `env:"GOVERNANCE_REVIEW_NAME" envDefault:"Governance Review"`
	PMOAdminEmail string `env:"PMO_ADMIN_EMAIL"`
	PMOAdminName  string `env:"PMO_ADMIN_NAME" envDefault:"PMO Administration"`
}

type ChangeControlOptions struct {
	// Budget-impact thresholds feeding the change severity score.
	BudgetAbsoluteThreshold float64 `env:"CHANGE_BUDGET_ABS_THRESHOLD" envDefault:"50000"`
	BudgetPercentThreshold  float64 `env:"CHANGE_BUDGET_PCT_THRESHOLD" envDefault:"10"`
	ScheduleDaysThreshold   int     `env:"CHANGE_SCHEDULE_DAYS_THRESHOLD" envDefault:"30"`
	// CumulativeEscalationPercent escalates severity once the running total
	// of approved budget changes passes this share of the original budget.
	CumulativeEscalationPercent float64 `env:"CHANGE_CUMULATIVE_ESCALATION_PCT" envDefault:"25"`
}

type SMTPOptions struct {
	Enabled  bool   `env:"SMTP_ENABLED" envDefault:"false"`
	Host     string `env:"SMTP_HOST" envDefault:"localhost"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"pmo@capitalgate.local"`
}

type Configuration struct {
	Database      DatabaseOptions
	Store         StoreOptions
	Governance    GovernanceOptions
	ChangeControl ChangeControlOptions
	SMTP          SMTPOptions

	ServerPort       int    `env:"PORT" envDefault:"3400"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateChangeControl(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) validateStore() error {
	backend := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch backend {
	case StoreBackendMemory, StoreBackendFile, StoreBackendPostgres:
	default:
		return fmt.Errorf("invalid STORE_BACKEND=%q (expected memory|file|postgres)", c.Store.Backend)
	}
	c.Store.Backend = backend

	mode := strings.ToLower(strings.TrimSpace(c.Store.PersistenceMode))
	switch mode {
	case PersistenceRequired, PersistenceBestEffort:
	default:
		return fmt.Errorf("invalid STORE_PERSISTENCE_MODE=%q (expected required|best-effort)", c.Store.PersistenceMode)
	}
	c.Store.PersistenceMode = mode

	if backend == StoreBackendFile && strings.TrimSpace(c.Store.FileRoot) == "" {
		return fmt.Errorf("STORE_FILE_ROOT is required for the file backend")
	}
	return nil
}

func (c *Configuration) validateChangeControl() error {
	cc := c.ChangeControl
	if cc.BudgetAbsoluteThreshold < 0 || cc.BudgetPercentThreshold < 0 || cc.CumulativeEscalationPercent < 0 {
		return fmt.Errorf("change-control thresholds must be non-negative")
	}
	if cc.ScheduleDaysThreshold < 0 {
		return fmt.Errorf("CHANGE_SCHEDULE_DAYS_THRESHOLD must be non-negative, got %d", cc.ScheduleDaysThreshold)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
