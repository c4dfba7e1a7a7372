package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/rKV/lib/codec"
	"github.com/ValentinKolb/rKV/lib/common"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/lib/predicate"
	"github.com/ValentinKolb/rKV/lib/reactive"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/store/lstore"
	"github.com/ValentinKolb/rKV/lib/store/sqlstore"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// FlushTimeout bounds how long closing a registry waits for pending writes
	FlushTimeout = 10 * time.Second
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupBackendFlags adds the flags every command that opens a backend shares
func SetupBackendFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, common.BackendMemory, WrapString("Backend the stores persist to (memory, local, sqlite). memory keeps everything in process and forgets it on exit"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("Directory for snapshot files (local) or database files (sqlite)"))

	key = "codec"
	cmd.PersistentFlags().String(key, "json", WrapString("Codec for persisted records (json, gob)"))

	key = "db-name"
	cmd.PersistentFlags().String(key, reactive.DefaultNamespace.DBName, WrapString("Database name of the default namespace"))

	key = "store-name"
	cmd.PersistentFlags().String(key, reactive.DefaultNamespace.StoreName, WrapString("Store name of the default namespace"))

	key = "race-policy"
	cmd.PersistentFlags().String(key, reactive.LastWriterWins.String(), WrapString("What happens when a write lands while the store is hydrating (last-writer-wins, hydration-wins)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "output"
	cmd.PersistentFlags().String(key, "text", WrapString("Output format of command results (text, json, yaml)"))
}

// InitConfig loads .env files and makes viper read RKV_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("rkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the configuration from viper and validates it
func GetConfig() (*common.Config, error) {
	conf := &common.Config{
		Backend: viper.GetString("backend"),
		DataDir: viper.GetString("data-dir"),
		Codec:   viper.GetString("codec"),
		Namespace: store.Namespace{
			DBName:    viper.GetString("db-name"),
			StoreName: viper.GetString("store-name"),
		},
		RacePolicy: viper.GetString("race-policy"),
		Endpoint:   viper.GetString("endpoint"),
		LogLevel:   viper.GetString("log-level"),
		Output:     viper.GetString("output"),
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}
	return conf, nil
}

// OpenBackend creates the store the configuration selects
func OpenBackend(conf *common.Config) (store.IStore, error) {
	factory := func() db.KVDB { return maple.NewMapleDB(nil) }

	switch conf.Backend {
	case common.BackendMemory:
		return lstore.NewLocalStore(factory, ""), nil
	case common.BackendLocal:
		return lstore.NewLocalStore(factory, conf.DataDir), nil
	case common.BackendSQLite:
		return sqlstore.NewSQLiteStore(conf.DataDir)
	default:
		return nil, fmt.Errorf("invalid backend %s", conf.Backend)
	}
}

// OpenRegistry opens the configured backend and a registry on top of it.
// The returned close func flushes the registry and closes the backend.
func OpenRegistry(conf *common.Config) (*reactive.Registry, func() error, error) {
	cd, err := codec.ByName(conf.Codec)
	if err != nil {
		return nil, nil, err
	}
	policy, err := reactive.ParseRacePolicy(conf.RacePolicy)
	if err != nil {
		return nil, nil, err
	}
	backend, err := OpenBackend(conf)
	if err != nil {
		return nil, nil, err
	}

	reg := reactive.NewRegistry(backend,
		reactive.WithDefaultCodec(cd),
		reactive.WithDefaultNamespace(conf.Namespace),
		reactive.WithDefaultRacePolicy(policy),
	)

	closeFn := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
		defer cancel()

		flushErr := reg.Close(ctx)
		if err := backend.Close(); err != nil {
			return err
		}
		return flushErr
	}
	return reg, closeFn, nil
}

// PrintResult writes v to w in the given output format. In text format strings are
// printed as is and everything else as indented JSON.
func PrintResult(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if s, ok := v.(string); ok {
			_, err := fmt.Fprintln(w, s)
			return err
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	default:
		return fmt.Errorf("invalid output format %s", format)
	}
}

// SetupRuleFlags adds the flags that attach validation rules to the stores a command binds
func SetupRuleFlags(cmd *cobra.Command) {
	key := "initial"
	cmd.PersistentFlags().String(key, "", WrapString("JSON value a store starts with and falls back to when the persisted record is missing or invalid (default null)"))

	key = "schema"
	cmd.PersistentFlags().String(key, "", WrapString("CUE schema persisted and written values must satisfy, e.g. '{name: string, age: int & >=0}'"))

	key = "expr"
	cmd.PersistentFlags().String(key, "", WrapString("expr-lang rule values must satisfy, e.g. 'age >= 18'"))

	key = "cel"
	cmd.PersistentFlags().String(key, "", WrapString("CEL rule values must satisfy, e.g. 'value.age >= 18'"))

	key = "js"
	cmd.PersistentFlags().String(key, "", WrapString("JavaScript expression values must satisfy, e.g. 'value.age >= 18'"))
}

// Rules holds the validation rules read from the rule flags
type Rules struct {
	Initial string
	Schema  string
	Expr    string
	CEL     string
	JS      string
}

// GetRules reads the rule flags from viper
func GetRules() Rules {
	return Rules{
		Initial: viper.GetString("initial"),
		Schema:  viper.GetString("schema"),
		Expr:    viper.GetString("expr"),
		CEL:     viper.GetString("cel"),
		JS:      viper.GetString("js"),
	}
}

// InitialValue parses the initial JSON value, nil means null
func (r Rules) InitialValue() (*any, error) {
	if r.Initial == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(r.Initial), &v); err != nil {
		return nil, fmt.Errorf("invalid initial value: %w", err)
	}
	return &v, nil
}

// Options compiles the rules into store options. Multiple rules must all hold.
func (r Rules) Options() ([]reactive.Option[any], error) {
	sources := []struct{ language, source string }{
		{"cue", r.Schema},
		{"expr", r.Expr},
		{"cel", r.CEL},
		{"js", r.JS},
	}

	var validators []predicate.Validator[any]
	for _, s := range sources {
		if s.source == "" {
			continue
		}
		check, err := predicate.Compile(s.language, s.source)
		if err != nil {
			return nil, err
		}
		validators = append(validators, predicate.FromCheck[any](check))
	}

	if len(validators) == 0 {
		return nil, nil
	}
	return []reactive.Option[any]{reactive.WithValidator[any](predicate.All(validators...))}, nil
}
