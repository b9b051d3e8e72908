// Command chimerascript is the CLI entry point for the ChimeraScript
// test DSL.
//
// Usage:
//
//	chimerascript run <file.chs>      [flags]  Execute a script
//	chimerascript validate <file.chs>           Parse a script, report errors
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/kyleoneill/chimerascript/internal/config"
	"github.com/kyleoneill/chimerascript/internal/httpclient"
	"github.com/kyleoneill/chimerascript/internal/live"
	"github.com/kyleoneill/chimerascript/internal/parser"
	"github.com/kyleoneill/chimerascript/internal/report"
	"github.com/kyleoneill/chimerascript/internal/runner"
	"github.com/kyleoneill/chimerascript/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  chimerascript run <file.chs> [--config FILE] [--base-url URL] [--filter NAME] [--db FILE] [--redis-addr ADDR]")
	fmt.Fprintln(os.Stderr, "  chimerascript validate <file.chs>")
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

// validationError is the JSON shape emitted for one parse/lex failure.
type validationError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

type validationResult struct {
	Valid  bool              `json:"valid"`
	Errors []validationError `json:"errors,omitempty"`
}

func cmdValidate(args []string) {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	flags.Parse(args)
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "validate requires a file path")
		os.Exit(1)
	}

	source, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(1)
	}

	_, errs := parser.ParseFile(string(source))
	result := validationResult{Valid: len(errs) == 0}
	for _, e := range errs {
		if pe, ok := e.(parser.ParseError); ok {
			result.Errors = append(result.Errors, validationError{Line: pe.Line, Column: pe.Column, Message: pe.Message})
		} else {
			result.Errors = append(result.Errors, validationError{Message: e.Error()})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "json encode: %v\n", err)
		os.Exit(1)
	}
	if !result.Valid {
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func cmdRun(args []string) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file (base_url, redis_addr, db_path)")
	baseURLFlag := flags.String("base-url", "", "HTTP base URL to run the script against (overrides --config)")
	filter := flags.String("filter", "", "dotted case name to run (default: run every test case)")
	dbPath := flags.String("db", "", "SQLite path to persist this run's results (overrides --config)")
	redisAddr := flags.String("redis-addr", "", "Redis address to broadcast live case events to (overrides --config)")
	excludeFile := flags.String("exclude-file", "", "YAML file listing dotted case-name patterns to skip")
	flags.Parse(args)

	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "run requires a file path")
		os.Exit(1)
	}
	scriptPath := flags.Arg(0)

	baseURL := *baseURLFlag
	var defaultHeaders map[string]string
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
		if baseURL == "" {
			baseURL = cfg.BaseURL
		}
		if *dbPath == "" {
			*dbPath = cfg.DBPath
		}
		if *redisAddr == "" {
			*redisAddr = cfg.RedisAddr
		}
		defaultHeaders = cfg.DefaultHeaders
	}
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "error: a base URL is required, via --base-url or --config's base_url")
		os.Exit(1)
	}

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(1)
	}

	script, errs := parser.ParseFile(string(source))
	if len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "parse errors:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
		os.Exit(1)
	}

	var excludePatterns []string
	if *excludeFile != "" {
		excludePatterns, err = config.LoadExclusionList(*excludeFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading exclusion list: %v\n", err)
			os.Exit(1)
		}
	}

	runID := uuid.NewString()
	ctx := context.Background()

	var db *store.Store
	if *dbPath != "" {
		db, err = store.New(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening store: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.CreateRun(runID, scriptPath); err != nil {
			fmt.Fprintf(os.Stderr, "error recording run: %v\n", err)
			os.Exit(1)
		}
	}

	var redisBroadcaster *live.RedisBroadcaster
	if *redisAddr != "" {
		redisBroadcaster = live.NewRedisBroadcaster(*redisAddr, "")
		defer redisBroadcaster.Close()
	}

	client := httpclient.New()
	r := runner.New(client, baseURL)
	r.DefaultHeaders = defaultHeaders
	r.ExcludePatterns = excludePatterns
	if redisBroadcaster != nil {
		r.OnCase = func(_ string, result *runner.CaseResult) {
			redisBroadcaster.Publish(ctx, live.EventFromResult(runID, result))
		}
	}

	results := r.RunScript(script, *filter)
	report.Terminal(os.Stdout, results)

	counts := runner.CountResults(results)
	if db != nil {
		for _, top := range results {
			persistCase(db, runID, nil, top)
		}
		status, summary := "passed", fmt.Sprintf("%d/%d passed", counts.Passed+counts.ExpectedFailure, counts.Total)
		if !counts.OverallPassed() {
			status = "failed"
		}
		if err := db.FinishRun(runID, status, summary); err != nil {
			fmt.Fprintf(os.Stderr, "error finishing run record: %v\n", err)
		}
	}

	if !counts.OverallPassed() {
		os.Exit(1)
	}
}

// persistCase writes a CaseResult tree to the store, parent row before
// child rows, so each child can carry its actual parent row id — unlike
// Runner.OnCase, which fires child-before-parent as recursion unwinds
// and so cannot supply a parent id that already exists in the database.
func persistCase(db *store.Store, runID string, parentID *int64, r *runner.CaseResult) {
	errMsg := ""
	if r.Err != nil {
		errMsg = r.Err.Error()
	}
	id, err := db.RecordCase(runID, parentID, r.Name, r.Status.String(), errMsg, r.Duration.Milliseconds())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error recording case %s: %v\n", r.Name, err)
		return
	}
	for _, child := range r.Children {
		persistCase(db, runID, &id, child)
	}
}
