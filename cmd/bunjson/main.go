// Command bunjson queries and edits a bunjson collection file from the shell.
//
//	bunjson get --file users.json --where "score >= 80" --sort score:desc --select email,name
//	bunjson update --file users.json --where "name = C" '{"score": 90}'
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kartikbazzad/bunbase/bunjson/pkg/config"
	apperrors "github.com/kartikbazzad/bunbase/bunjson/pkg/errors"
	"github.com/kartikbazzad/bunbase/bunjson/pkg/logger"
)

// Config is read from .env and BUNJSON_* variables; flags override it
type Config struct {
	File   string    `mapstructure:"file"`
	Indent bool      `mapstructure:"indent"`
	Log    LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func main() {
	cfg := Config{Log: LogConfig{Level: "WARN", Format: "text"}}
	if err := config.Load("BUNJSON_", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(apperrors.CodeUsage)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := newRootCmd(&cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	// cobra's own flag and argument errors
	return apperrors.CodeUsage
}
