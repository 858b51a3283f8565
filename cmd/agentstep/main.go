// Command agentstep is the CLI for the agentstep runtime.
//
// Usage:
//
//	agentstep chat --setting setting.yaml
//	agentstep backward --input qa_lists.json --max-level 2
//	agentstep reward --question "..." --target "..." --candidate "..." --candidate "..."
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/logging"
)

const (
	exitOK        = 0
	exitConfig    = 2
	exitUpstream  = 3
	exitCancelled = 4
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Chat     ChatCmd     `cmd:"" help:"Run an interactive chat loop against the configured agent."`
	Backward BackwardCmd `cmd:"" help:"Transform Q&A lists into a chapter structure and OSPA rows."`
	Reward   RewardCmd   `cmd:"" help:"Judge candidate answers against a target answer."`

	Setting   string `short:"s" help:"Path to a YAML Setting bundle (falls back to environment)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*runContext) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentstep version %s\n", version)
	return nil
}

// runContext is what every command receives: the process context (cancelled
// on SIGINT/SIGTERM) plus lazy access to the parsed setting and a wired LLM
// client, so commands that need neither never load them.
type runContext struct {
	ctx         context.Context
	settingPath string
}

func (rc *runContext) load() (config.Setting, llms.Client, error) {
	var setting config.Setting
	var err error
	if rc.settingPath != "" {
		setting, err = config.LoadSettingFile(rc.settingPath)
	} else {
		setting, err = config.LoadFromEnv()
	}
	if err != nil {
		return config.Setting{}, nil, err
	}

	client, err := llms.NewOpenAIClient(llms.OpenAIConfig{
		APIKey:  setting.LLM.APIKey,
		BaseURL: setting.LLM.Host,
		Model:   setting.LLM.Model,
		Timeout: time.Duration(setting.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return config.Setting{}, nil, err
	}
	return setting, client, nil
}

func exitCodeFor(err error) int {
	var cfgErr *config.ConfigError
	var llmCfgErr *llms.ConfigError
	if errors.As(err, &cfgErr) || errors.As(err, &llmCfgErr) {
		return exitConfig
	}
	if errors.Is(err, context.Canceled) || llms.IsCancelled(err) {
		return exitCancelled
	}
	return exitUpstream
}

func main() {
	cli := &CLI{}
	parsed := kong.Parse(cli,
		kong.Name("agentstep"),
		kong.Description("Agent step-loop runtime and backward OSPA pipeline."),
		kong.UsageOnError(),
	)

	logging.SetDefault(logging.Config{Level: cli.LogLevel, Format: cli.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc := &runContext{ctx: ctx, settingPath: cli.Setting}
	if err := parsed.Run(rc); err != nil {
		fmt.Fprintln(os.Stderr, "agentstep:", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}
