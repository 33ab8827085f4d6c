// wmotool converts EverQuest zone meshes to WMO files and inspects the
// files and archives involved.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/wmoforge/internal/assets"
	"github.com/Faultbox/wmoforge/internal/config"
	"github.com/Faultbox/wmoforge/internal/logger"
	"github.com/Faultbox/wmoforge/internal/pipeline"
	"github.com/Faultbox/wmoforge/pkg/convert"
	"github.com/Faultbox/wmoforge/pkg/formats"
	"github.com/Faultbox/wmoforge/pkg/mesh"
	"github.com/Faultbox/wmoforge/pkg/s3d"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, usage)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// usageError is reported as-is, without the "Error:" prefix.
type usageError string

func (e usageError) Error() string { return string(e) }

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("no command given")
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "convert":
		return cmdConvert(args)
	case "info":
		return cmdInfo(args)
	case "chunks":
		return cmdChunks(args)
	case "s3d":
		return cmdS3D(args)
	case "dbc":
		return cmdDBC(args)
	case "config":
		return cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println(`wmotool - EverQuest zone to WMO converter

Usage:
  wmotool <command> [options]

Commands:
  convert [flags] <zone>...          Convert zone meshes to WMO root and group files
  info <file.wmo>                    Show root header, groups and names
  chunks <file.wmo>                  List the chunks of a root or group file
  s3d <file.s3d> [entry] [output]    List an archive or extract one entry
  dbc [-table t] [-locale l] <file>  Dump WMOAreaTable, AreaTable, Map or raw rows
  config [-o path]                   Write the effective configuration as YAML

Examples:
  wmotool convert -in zones -out build qeynos freeport
  wmotool convert -s3d -axis zup -dbc WMOAreaTable.dbc -in eqdata qeynos
  wmotool convert -packs base.s3d,patch.s3d -group-vertices 4096 qeynos
  wmotool info build/qeynos.wmo
  wmotool chunks build/qeynos_000.wmo
  wmotool s3d qeynos.s3d qeynos.yaml ./out`)
}

func cmdConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	verify := fs.Bool("verify", false, "Read every written map back")
	manifest := fs.String("manifest", "manifest.yaml", "Report file name inside the output directory (empty = none)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usageError("Usage: wmotool convert [flags] <zone>...")
	}

	cfg, err := config.Load("", flags)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log

	opts, err := cfg.ConvertOptions(log.Named("convert"))
	if err != nil {
		return err
	}
	conv, err := convert.New(opts)
	if err != nil {
		return err
	}

	var areas []formats.WMOArea
	if cfg.Paths.DBC != "" {
		locale, err := formats.ParseLocale(cfg.Locale)
		if err != nil {
			return err
		}
		if areas, err = pipeline.LoadAreas(cfg.Paths.DBC, locale); err != nil {
			return err
		}
		log.Info("loaded WMOAreaTable", zap.String("path", cfg.Paths.DBC), zap.Int("rows", len(areas)))
	}

	var loader mesh.Loader = mesh.YAMLLoader{Dir: cfg.Paths.Input}
	switch {
	case len(cfg.Paths.Packs) > 0:
		packs := assets.NewManager()
		defer packs.Close()
		for _, p := range cfg.Paths.Packs {
			if err := packs.AddArchive(p); err != nil {
				return err
			}
		}
		loader = assets.MeshLoader{Assets: packs}
	case cfg.Paths.Archives:
		loader = mesh.ArchiveLoader{Dir: cfg.Paths.Input}
	}

	runner, err := pipeline.New(pipeline.Config{
		Loader:    loader,
		Converter: conv,
		OutputDir: cfg.Paths.Output,
		Areas:     areas,
		Verify:    *verify,
		Workers:   cfg.Workers,
		Logger:    log.Named("pipeline"),
	})
	if err != nil {
		return err
	}

	jobs := make([]pipeline.Job, fs.NArg())
	for i, name := range fs.Args() {
		jobs[i] = pipeline.Job{Name: name}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, runErr := runner.Run(ctx, jobs)
	if report == nil {
		return runErr
	}

	if *manifest != "" {
		path := filepath.Join(cfg.Paths.Output, *manifest)
		if err := pipeline.WriteManifest(path, report); err != nil {
			log.Error("writing manifest", zap.Error(err))
		}
	}

	for _, res := range report.Results {
		if res.Success {
			fmt.Printf("  ok    %-20s groups=%d triangles=%d root_id=%d\n", res.Name, res.Groups, res.Triangles, res.RootID)
		} else {
			fmt.Printf("  FAIL  %-20s %s\n", res.Name, res.Error)
		}
	}
	fmt.Printf("\n%d converted, %d failed (run %s)\n", report.Succeeded, report.Failed, report.RunID)

	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", report.Failed, len(report.Results))
	}
	return nil
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	groups := fs.Bool("groups", false, "Also read the group files next to the root")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usageError("Usage: wmotool info [-groups] <file.wmo>")
	}
	path := fs.Arg(0)

	var unknown []string
	onUnknown := formats.OnUnknownChunk(func(tag formats.ChunkTag, size int) {
		unknown = append(unknown, fmt.Sprintf("%s (%d bytes)", tag, size))
	})

	var root *formats.Root
	var err error
	if *groups {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		root, err = formats.ReadMap(filepath.Dir(path), name, onUnknown)
	} else {
		root, err = formats.ParseRootFile(path, onUnknown)
	}
	if err != nil {
		return err
	}

	h := root.Header
	fmt.Printf("File:      %s\n", path)
	fmt.Printf("Version:   %d\n", root.Version)
	fmt.Printf("ID:        %d\n", h.ID)
	fmt.Printf("Textures:  %d\n", h.NumTextures)
	fmt.Printf("Groups:    %d\n", h.NumGroups)
	fmt.Printf("Portals:   %d\n", h.NumPortals)
	fmt.Printf("Lights:    %d\n", h.NumLights)
	fmt.Printf("Models:    %d\n", h.NumModels)
	fmt.Printf("Doodads:   %d (%d sets)\n", h.NumDoodads, h.NumDoodadSets)
	fmt.Printf("Ambient:   0x%08X\n", h.AmbientColor.Uint32())
	fmt.Printf("Bounds:    (%.2f, %.2f, %.2f) - (%.2f, %.2f, %.2f)\n",
		h.Bounds.Min.X, h.Bounds.Min.Y, h.Bounds.Min.Z,
		h.Bounds.Max.X, h.Bounds.Max.Y, h.Bounds.Max.Z)
	if root.Skybox != "" {
		fmt.Printf("Skybox:    %s\n", root.Skybox)
	}

	if len(root.TextureNames) > 0 {
		fmt.Println("\nTextures:")
		for _, name := range root.TextureNames {
			fmt.Printf("  %s\n", name)
		}
	}

	fmt.Println("\nGroup descriptors:")
	for i, gi := range root.GroupInfos {
		name, ok := gi.Name.Resolve(root.GroupNames)
		if !ok {
			name = "-"
		}
		line := fmt.Sprintf("  %03d  flags=0x%08X  name=%s", i, gi.Flags, name)
		if i < len(root.Groups) {
			g := root.Groups[i]
			line += fmt.Sprintf("  vertices=%d triangles=%d", len(g.Vertices), len(g.Triangles))
		}
		fmt.Println(line)
	}

	if len(unknown) > 0 {
		fmt.Println("\nUnknown chunks:")
		for _, u := range unknown {
			fmt.Printf("  %s\n", u)
		}
	}
	return nil
}

func cmdChunks(args []string) error {
	if len(args) < 1 {
		return usageError("Usage: wmotool chunks <file.wmo>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cr := formats.NewChunkReader(f)
	total := 0
	for {
		offset := cr.Offset()
		c, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("at offset %d: %w", offset, err)
		}
		fmt.Printf("  0x%08X  %s  %d\n", offset, c.Tag, len(c.Data))
		total++
	}
	fmt.Fprintf(os.Stderr, "\n(%d chunks)\n", total)
	return nil
}

func cmdS3D(args []string) error {
	fs := flag.NewFlagSet("s3d", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usageError("Usage: wmotool s3d <file.s3d> [entry] [output_dir]")
	}

	archive, err := s3d.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	if fs.NArg() < 2 {
		files := archive.List()
		fmt.Printf("Archive: %s (version 0x%X)\n", fs.Arg(0), archive.Version())
		for _, name := range files {
			e, err := archive.Stat(name)
			if err != nil {
				continue
			}
			fmt.Printf("  %-32s %10d  crc=0x%08X\n", name, e.Size, e.CRC)
		}
		fmt.Fprintf(os.Stderr, "\n(%d files)\n", len(files))
		return nil
	}

	entry := fs.Arg(1)
	outputDir := "."
	if fs.NArg() > 2 {
		outputDir = fs.Arg(2)
	}

	data, err := archive.Read(entry)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(outputDir, filepath.Base(entry))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
	return nil
}

func cmdDBC(args []string) error {
	fs := flag.NewFlagSet("dbc", flag.ExitOnError)
	table := fs.String("table", "", "Table layout: wmoarea, area, map or raw (default: from file name)")
	localeName := fs.String("locale", "enUS", "String column locale")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usageError("Usage: wmotool dbc [-table t] [-locale l] <file.dbc>")
	}
	path := fs.Arg(0)

	locale, err := formats.ParseLocale(*localeName)
	if err != nil {
		return err
	}
	d, err := formats.ParseDBCFile(path)
	if err != nil {
		return err
	}

	kind := *table
	if kind == "" {
		switch strings.ToLower(filepath.Base(path)) {
		case "wmoareatable.dbc":
			kind = "wmoarea"
		case "areatable.dbc":
			kind = "area"
		case "map.dbc":
			kind = "map"
		default:
			kind = "raw"
		}
	}

	fmt.Printf("%s: %d records, %d fields, locale %s\n\n", path, d.Len(), d.Header.NumFields, locale)

	switch kind {
	case "wmoarea":
		rows, err := formats.WMOAreaTable(d, locale)
		if err != nil {
			return err
		}
		for _, a := range rows {
			fmt.Printf("  %6d  root=%-6d set=%-4d group=%-6d %s\n", a.ID, a.RootID, a.NameSetID, a.GroupID, a.Name)
		}
	case "area":
		rows, err := formats.AreaTable(d, locale)
		if err != nil {
			return err
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		for _, a := range rows {
			fmt.Printf("  %6d  map=%-4d parent=%-6d level=%-3d %s\n", a.ID, a.MapID, a.ParentID, a.Level, a.Name)
		}
	case "map":
		rows, err := formats.MapTable(d, locale)
		if err != nil {
			return err
		}
		for _, m := range rows {
			fmt.Printf("  %4d  %-24s type=%d  %s\n", m.ID, m.InternalName, m.Type, m.Name)
		}
	case "raw":
		for i, r := range d.Records() {
			fields := make([]string, r.NumFields())
			for f := range fields {
				v, _ := r.Uint32(f)
				fields[f] = fmt.Sprint(v)
			}
			fmt.Printf("  %6d  %s\n", i, strings.Join(fields, " "))
		}
	default:
		return fmt.Errorf("unknown table %q", kind)
	}
	return nil
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	out := fs.String("o", "", "Write to this path instead of the user config directory")
	fs.Parse(args)

	cfg, err := config.Load("", flags)
	if err != nil {
		return err
	}

	if *out != "" {
		err = cfg.SaveTo(*out)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println("Configuration written")
	return nil
}
