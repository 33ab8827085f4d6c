package config

import (
	"flag"
	"strings"
)

// Flags are the command-line overrides shared by the commands that convert.
type Flags struct {
	fs *flag.FlagSet

	config    *string
	debug     *bool
	axis      *string
	scale     *float64
	bounds    *string
	normals   *bool
	texcoords *string
	groupMax  *int
	input     *string
	output    *string
	archives  *bool
	packs     *string
	dbc       *string
	locale    *string
	workers   *int
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:        fs,
		config:    fs.String("config", "", "Path to config file"),
		debug:     fs.Bool("debug", false, "Enable debug logging"),
		axis:      fs.String("axis", "", "Axis convention: identity or zup"),
		scale:     fs.Float64("scale", 0, "Mesh to world unit factor"),
		bounds:    fs.String("bounds", "", "Bounding boxes: computed or placeholder"),
		normals:   fs.Bool("normals", false, "Compute per-vertex normals"),
		texcoords: fs.String("texcoords", "", "Texture coordinates: drop or store"),
		groupMax:  fs.Int("group-vertices", 0, "Split groups at this many vertices (0 = single group)"),
		input:     fs.String("in", "", "Input directory"),
		output:    fs.String("out", "", "Output directory"),
		archives:  fs.Bool("s3d", false, "Read meshes from .s3d archives"),
		packs:     fs.String("packs", "", "Comma-separated .s3d archives to mount"),
		dbc:       fs.String("dbc", "", "WMOAreaTable.dbc for root IDs"),
		locale:    fs.String("locale", "", "DBC locale, e.g. enUS"),
		workers:   fs.Int("workers", 0, "Concurrent conversions"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	return *f.config
}

// Apply copies every flag that was set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if *f.debug {
				cfg.Logging.Level = "debug"
			}
		case "axis":
			cfg.Convert.Axis = *f.axis
		case "scale":
			cfg.Convert.Scale = *f.scale
		case "bounds":
			cfg.Convert.Bounds = *f.bounds
		case "normals":
			cfg.Convert.Normals = *f.normals
		case "texcoords":
			cfg.Convert.TexCoords = *f.texcoords
		case "group-vertices":
			cfg.Convert.GroupVertexLimit = *f.groupMax
		case "in":
			cfg.Paths.Input = *f.input
		case "out":
			cfg.Paths.Output = *f.output
		case "s3d":
			cfg.Paths.Archives = *f.archives
		case "packs":
			cfg.Paths.Packs = nil
			for _, p := range strings.Split(*f.packs, ",") {
				if p = strings.TrimSpace(p); p != "" {
					cfg.Paths.Packs = append(cfg.Paths.Packs, p)
				}
			}
		case "dbc":
			cfg.Paths.DBC = *f.dbc
		case "locale":
			cfg.Locale = *f.locale
		case "workers":
			cfg.Workers = *f.workers
		}
	})
}
