package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/xpanvictor/aegyptus-stt/internal/config"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// Checks the speech runtime once, the same way the server does before every
// transcription. Exits 1 when it is unusable.
func main() {
	verbose := flag.Bool("v", false, "log probe details")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		color.Red("failed to load configuration: %v", err)
		os.Exit(2)
	}

	logger := Logger.NewNop()
	if *verbose {
		logger = Logger.New(true)
	}

	probeCfg := cfg.Speech.Probe
	color.Cyan("================================")
	color.Cyan("   aegyptus speech environment   ")
	color.Cyan("================================")
	fmt.Printf("interpreter: %s\n", probeCfg.Interpreter)
	fmt.Printf("modules:     %v\n", probeCfg.Modules)
	fmt.Printf("timeout:     %s\n", probeCfg.Timeout())

	for _, p := range []config.WorkerProfile{cfg.Speech.Baseline, cfg.Speech.Enhanced} {
		fmt.Printf("%-9s    %s %s (model %s, max %dMB, %s)\n",
			p.Name+":", p.Interpreter, p.Script, p.ModelSize, p.MaxUploadBytes>>20, p.Timeout())
		if _, err := os.Stat(p.Script); err != nil {
			color.Yellow("  warning: worker script not found: %v", err)
		}
	}

	prober := whisper.NewProber(probeCfg.Interpreter, probeCfg.Modules, probeCfg.Timeout(), logger)
	report := prober.Check(context.Background())

	fmt.Print("environment: ")
	if !report.Available {
		color.Red("unavailable")
		color.Red("  %s", report.Error)
		os.Exit(1)
	}
	color.Green("available")
}
