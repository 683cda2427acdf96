package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/felixgeelhaar/listenex/internal/bundle"
)

// manifestPath accepts a project directory or a manifest file.
func manifestPath(arg string) string {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return filepath.Join(arg, bundle.ManifestFile)
	}
	return arg
}

// cmdNew scaffolds an exercise project
func cmdNew(args []string) error {
	if err := requireArgs(args, 1, "new <dir> [title]"); err != nil {
		return err
	}
	dir := args[0]
	title := filepath.Base(dir)
	if len(args) > 1 {
		title = args[1]
	}

	path := filepath.Join(dir, bundle.ManifestFile)
	if fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Join(dir, bundle.AssetsDir), 0755); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	m := bundle.NewManifest(dir, title)
	m.Groups = []bundle.ManifestGroup{
		{Audio: []bundle.ManifestAudio{{Name: "Sound 1"}}},
		{Audio: []bundle.ManifestAudio{{Name: "Sound 2"}}},
	}
	if err := m.Save(path); err != nil {
		return err
	}

	fmt.Printf("✓ Created %s\n", path)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Copy images and clips into %s\n", filepath.Join(dir, bundle.AssetsDir))
	fmt.Printf("  2. Reference them from %s (image, audio[].file)\n", bundle.ManifestFile)
	fmt.Printf("  3. listenex validate %s\n", dir)
	return nil
}

// cmdValidate checks a manifest before export
func cmdValidate(args []string) error {
	if err := requireArgs(args, 1, "validate <manifest|dir>"); err != nil {
		return err
	}
	m, err := bundle.LoadManifest(manifestPath(args[0]))
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		fmt.Println("✗ Not ready to export")
		return err
	}

	fmt.Printf("✓ %s\n", m.Title)
	fmt.Printf("  Groups: %d | Clips: %d\n", len(m.Groups), m.AudioCount())
	return nil
}

// cmdExport builds a bundle ZIP
func cmdExport(args []string) error {
	args, noEngine := takeFlag(args, "--no-engine")
	if err := requireArgs(args, 1, "export [--no-engine] <manifest|dir> [out.zip]"); err != nil {
		return err
	}
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := bundle.LoadManifest(manifestPath(args[0]))
	if err != nil {
		return err
	}
	out := bundle.ArchiveName(m.Title)
	if len(args) > 1 {
		out = args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc, err := bundle.ExportFile(ctx, m, out, bundle.ExportOptions{
		EngineDir: rt.cfg.Export.EngineDir,
		NoEngine:  noEngine,
	})
	if errors.Is(err, bundle.ErrEngineMissing) && rt.cfg.Export.EngineDir == "" {
		return fmt.Errorf("%w (set export.engine_dir or pass --no-engine)", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Exported %q to %s\n", doc.Title, out)
	fmt.Printf("  Groups: %d | Clips: %d\n", len(doc.Groups), doc.TotalItems())
	if noEngine {
		fmt.Printf("  ⚠ Exported without the engine; add %s and %s before opening it in a browser\n",
			bundle.EngineFile, bundle.WasmExecFile)
	}
	return nil
}

// takeFlag removes every occurrence of flag from args and reports whether
// it was present.
func takeFlag(args []string, flag string) ([]string, bool) {
	rest := make([]string, 0, len(args))
	found := false
	for _, a := range args {
		if a == flag {
			found = true
			continue
		}
		rest = append(rest, a)
	}
	return rest, found
}

// cmdImport turns a bundle ZIP back into a project
func cmdImport(args []string) error {
	if err := requireArgs(args, 2, "import <bundle.zip> <dir>"); err != nil {
		return err
	}
	m, err := bundle.Import(args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("✓ Imported %q into %s\n", m.Title, args[1])
	fmt.Printf("  Groups: %d | Clips: %d\n", len(m.Groups), m.AudioCount())
	return nil
}

// cmdExample prints a generated exercise document
func cmdExample(args []string) error {
	groups, perGroup := 3, 2
	var err error
	if len(args) > 0 {
		if groups, err = positiveInt(args[0]); err != nil {
			return fmt.Errorf("groups: %w", err)
		}
	}
	if len(args) > 1 {
		if perGroup, err = positiveInt(args[1]); err != nil {
			return fmt.Errorf("per-group: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle.Example(groups, perGroup))
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q is not a positive number", s)
	}
	return n, nil
}

// cmdInfo describes an exercise
func cmdInfo(args []string) error {
	if err := requireArgs(args, 1, "info <path|example>"); err != nil {
		return err
	}
	doc, _, closeFn, err := loadExercise(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Printf("Exercise: %s\n\n", doc.Title)
	if doc.GeneratedAt != nil {
		fmt.Printf("Generated: %s\n", doc.GeneratedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("Groups:    %d\n", len(doc.Groups))
	fmt.Printf("Clips:     %d\n", doc.TotalItems())

	for _, g := range doc.Groups {
		fmt.Printf("\nGroup %d (%d slots)\n", g.ID, g.SlotCount())
		if g.HasBackground() {
			fmt.Println("  image: yes")
		}
		for _, a := range g.AudioItems {
			marker := " "
			if a.Missing() {
				marker = "!"
			}
			fmt.Printf("  %s #%-3d %s\n", marker, a.ID, a.Label())
		}
	}
	return nil
}
