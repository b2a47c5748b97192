package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis
	RedisURL string        `mapstructure:"REDIS_URL"`
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	// Squad rules
	Starters           int     `mapstructure:"STARTERS"`
	GoalkeeperStarters int     `mapstructure:"GK_STARTERS"`
	DefenderMin        int     `mapstructure:"DEF_MIN"`
	DefenderMax        int     `mapstructure:"DEF_MAX"`
	MidfielderMax      int     `mapstructure:"MID_MAX"`
	ForwardMin         int     `mapstructure:"FWD_MIN"`
	SquadGoalkeepers   int     `mapstructure:"SQUAD_GK"`
	SquadDefenders     int     `mapstructure:"SQUAD_DEF"`
	SquadMidfielders   int     `mapstructure:"SQUAD_MID"`
	SquadForwards      int     `mapstructure:"SQUAD_FWD"`
	BudgetCap          float64 `mapstructure:"BUDGET_CAP"`
	MaxPerClub         int     `mapstructure:"MAX_PER_CLUB"`
	Metric             string  `mapstructure:"OPTIMISATION_METRIC"`

	// Solver
	SolverBackend  string        `mapstructure:"SOLVER_BACKEND"`
	HighsPath      string        `mapstructure:"HIGHS_PATH"`
	SolverTimeout  time.Duration `mapstructure:"SOLVER_TIMEOUT"`
	SolverVerbose  bool          `mapstructure:"SOLVER_VERBOSE"`
	SolverMaxNodes int           `mapstructure:"SOLVER_MAX_NODES"`

	// Player data
	DataDir          string  `mapstructure:"DATA_DIR"`
	PlayersFile      string  `mapstructure:"PLAYERS_FILE"`
	AssumeAvailable  bool    `mapstructure:"ASSUME_AVAILABLE"`
	LiveAvailability bool    `mapstructure:"LIVE_AVAILABILITY"`
	NowCostDivisor   float64 `mapstructure:"NOW_COST_DIVISOR"`

	// External APIs
	FPLBaseURL              string        `mapstructure:"FPL_BASE_URL"`
	FPLRateLimit            int           `mapstructure:"FPL_RATE_LIMIT"`
	FetchWorkers            int           `mapstructure:"FETCH_WORKERS"`
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`

	// Background jobs
	EnableBackgroundJobs bool   `mapstructure:"ENABLE_BACKGROUND_JOBS"`
	DataFetchSchedule    string `mapstructure:"DATA_FETCH_SCHEDULE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_URL", "sqlite://ff_epl.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", "1h")

	v.SetDefault("STARTERS", 11)
	v.SetDefault("GK_STARTERS", 1)
	v.SetDefault("DEF_MIN", 3)
	v.SetDefault("DEF_MAX", 5)
	v.SetDefault("MID_MAX", 5)
	v.SetDefault("FWD_MIN", 1)
	v.SetDefault("SQUAD_GK", 2)
	v.SetDefault("SQUAD_DEF", 5)
	v.SetDefault("SQUAD_MID", 5)
	v.SetDefault("SQUAD_FWD", 3)
	v.SetDefault("BUDGET_CAP", 100.0)
	v.SetDefault("MAX_PER_CLUB", 3)
	v.SetDefault("OPTIMISATION_METRIC", "total_points")

	v.SetDefault("SOLVER_BACKEND", "highs")
	v.SetDefault("HIGHS_PATH", "highs")
	v.SetDefault("SOLVER_TIMEOUT", "30s")
	v.SetDefault("SOLVER_VERBOSE", false)
	v.SetDefault("SOLVER_MAX_NODES", 0)

	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("PLAYERS_FILE", "players.csv")
	v.SetDefault("ASSUME_AVAILABLE", true) // blank availability means available
	v.SetDefault("LIVE_AVAILABILITY", false)
	v.SetDefault("NOW_COST_DIVISOR", 10.0)

	v.SetDefault("FPL_BASE_URL", "https://fantasy.premierleague.com/api/")
	v.SetDefault("FPL_RATE_LIMIT", 5) // requests per second
	v.SetDefault("FETCH_WORKERS", 8)
	v.SetDefault("EXTERNAL_API_TIMEOUT", "10s")
	v.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)

	v.SetDefault("ENABLE_BACKGROUND_JOBS", false)
	v.SetDefault("DATA_FETCH_SCHEDULE", "@every 6h")
}

// LoadConfig reads .env, the environment and defaults.
func LoadConfig() (*Config, error) {
	return LoadConfigWithFlags(nil)
}

// LoadConfigWithFlags also binds every flag of fs to the key of the same
// name upper-cased with dashes turned into underscores ("--budget-cap" ->
// BUDGET_CAP). Changed flags win over the environment.
func LoadConfigWithFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(FlagKey(f.Name), f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("unable to bind flags: %w", bindErr)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if corsStr := v.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}
	// CSV headers are matched lower-cased, so the metric is too.
	config.Metric = strings.ToLower(strings.TrimSpace(config.Metric))
	config.SolverBackend = strings.ToLower(strings.TrimSpace(config.SolverBackend))

	return &config, nil
}

// FlagKey maps a flag name to its configuration key.
func FlagKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// RegisterRuleFlags adds the squad rule and solver flags to fs.
func RegisterRuleFlags(fs *pflag.FlagSet) {
	fs.String("optimisation-metric", "total_points", "player metric to maximise")
	fs.Float64("budget-cap", 100, "budget for the full squad including the bench reserve")
	fs.Int("max-per-club", 3, "maximum starters from one club")
	fs.Int("starters", 11, "number of starters")
	fs.Int("gk-starters", 1, "starting goalkeepers")
	fs.Int("def-min", 3, "minimum starting defenders")
	fs.Int("def-max", 5, "maximum starting defenders")
	fs.Int("mid-max", 5, "maximum starting midfielders")
	fs.Int("fwd-min", 1, "minimum starting forwards")
	fs.String("solver-backend", "highs", "MILP backend: highs or bnb")
	fs.String("highs-path", "highs", "HiGHS executable, looked up on PATH")
	fs.Duration("solver-timeout", 30*time.Second, "solver time limit")
	fs.Bool("solver-verbose", false, "log solver progress")
	fs.Int("solver-max-nodes", 0, "branch and bound node limit, 0 for none")
	fs.Bool("assume-available", true, "treat players without availability data as available")
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
