package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/listenex/internal/audio"
	"github.com/felixgeelhaar/listenex/internal/audio/pcm"
	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/config"
	"github.com/felixgeelhaar/listenex/internal/queue"
)

// cmdInit initializes listenex for first-time use
func cmdInit() error {
	fmt.Println("listenex - First-Time Setup")
	fmt.Println("===========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	// 1. Create directory structure
	fmt.Print("Creating ~/.listenex directory structure... ")
	dir, err := config.EnsureListenexDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	// 2. Create default config if it doesn't exist
	configPath := filepath.Join(dir, "config.yaml")
	if !fileExists(configPath) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	// 3. Optional result reporting
	fmt.Println()
	fmt.Println("Result Reporting")
	fmt.Println("----------------")
	fmt.Println("Completions can be published to a RabbitMQ queue for live monitoring.")
	fmt.Println()

	cfg, _ := config.LoadLocalConfig()
	if cfg != nil && cfg.Reporting.AMQP.URL != "" {
		fmt.Println("AMQP URL: already configured ✓")
	} else {
		fmt.Print("Enter AMQP URL (or press Enter to skip): ")
		url, _ := reader.ReadString('\n')
		url = strings.TrimSpace(url)
		if url != "" {
			if err := config.SaveSecrets(url); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved (enable with reporting.amqp.enabled: true)")
			}
		}
	}

	// 4. Summary
	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. listenex doctor            # Verify audio and storage")
	fmt.Println("  2. listenex play example      # Try the demo exercise")
	fmt.Println("  3. listenex new my-exercise   # Start authoring")
	fmt.Println()
	fmt.Println("For editor integration:")
	fmt.Println("  - Configure MCP with 'listenex mcp' command")

	return nil
}

// cmdConfig prints the effective configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir, err := config.ListenexDir()
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.Reporting.AMQP.URL != "" {
		shown.Reporting.AMQP.URL = "(set)"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Printf("# %s\n", filepath.Join(dir, "config.yaml"))
	fmt.Print(string(data))
	return nil
}

// cmdDoctor checks the local setup
func cmdDoctor() error {
	fmt.Println("Checking listenex setup...")

	allGood := true

	// Check listenex directory
	fmt.Print("Directory: ")
	dir, err := config.ListenexDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if !fileExists(dir) {
		fmt.Println("✗ not created (run 'listenex init' to create)")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", dir)
	}

	// Check config
	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}
	fmt.Println("✓ loaded")

	// Check storage
	fmt.Printf("Storage:   ")
	rt := &runtime{dir: dir, cfg: cfg}
	if _, err := rt.openResults(context.Background()); err != nil {
		fmt.Printf("✗ %s: %v\n", cfg.Storage.Backend, err)
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", cfg.Storage.Backend)
	}
	rt.Close()

	// Check audio output
	fmt.Print("Audio:     ")
	switch {
	case !cfg.Audio.Enabled:
		fmt.Println("- disabled")
	default:
		p, err := audio.NewOtoPlayer(pcm.NewResolver(nil), cfg.Audio.SampleRate)
		if err != nil {
			fmt.Printf("✗ %v\n", err)
			allGood = false
		} else {
			_ = p.Close()
			fmt.Printf("✓ %d Hz\n", cfg.Audio.SampleRate)
		}
	}

	// Check browser engine
	fmt.Print("Engine:    ")
	switch {
	case cfg.Export.EngineDir == "":
		fmt.Println("- not configured (bundles export without engine.wasm)")
	case !fileExists(filepath.Join(cfg.Export.EngineDir, bundle.EngineFile)),
		!fileExists(filepath.Join(cfg.Export.EngineDir, bundle.WasmExecFile)):
		fmt.Printf("✗ %s lacks %s or %s\n", cfg.Export.EngineDir, bundle.EngineFile, bundle.WasmExecFile)
		allGood = false
	default:
		fmt.Printf("✓ %s\n", cfg.Export.EngineDir)
	}

	// Check reporting
	fmt.Print("Reporting: ")
	if !cfg.Reporting.AMQP.Enabled {
		fmt.Println("- disabled")
	} else if conn, err := queue.NewConnection(cfg.Reporting.AMQP.URL); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		_ = conn.Close()
		fmt.Println("✓ broker reachable")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed!")
		return nil
	}
	return fmt.Errorf("some checks failed")
}
