// Package config loads and validates the typed configuration document
// that drives a cs2bim-go run: database and cache endpoints, the STAC
// catalog, the tin (terrain) parameters, and the per-feature-class IFC
// mapping rules.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"cs2bim-go/internal/cserr"
)

const envPrefix = "CS2BIM"

// Config is the root configuration document, loaded from YAML plus
// CS2BIM_-prefixed environment overrides (e.g. CS2BIM_DATABASE_HOST).
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Stac     StacConfig     `mapstructure:"stac" yaml:"stac"`
	Tin      TinConfig      `mapstructure:"tin" yaml:"tin"`
	Ifc      IfcConfig      `mapstructure:"ifc" yaml:"ifc"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// DatabaseConfig holds the spatial-database connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
}

// RedisConfig holds the connection parameters shared by the asset cache
// and the asynq job broker.
type RedisConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	CacheDB    int    `mapstructure:"cache_db" yaml:"cache_db"`
	QueueDB    int    `mapstructure:"queue_db" yaml:"queue_db"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir"`
	TTLSeconds int    `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// StacConfig holds the STAC catalog endpoint used to discover DTM and
// CityGML assets.
type StacConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	RequestTimeoutS int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	FetchTimeoutS   int    `mapstructure:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
}

// TinConfig holds the terrain mesh quality parameters.
type TinConfig struct {
	GridSize       float64 `mapstructure:"grid_size" yaml:"grid_size"`
	MaxHeightError float64 `mapstructure:"max_height_error" yaml:"max_height_error"`
	MaxEdgeLen     float64 `mapstructure:"max_edge_len" yaml:"max_edge_len"`
}

// GeoReferencingMode selects how the assembled model is geo-located.
type GeoReferencingMode string

const (
	GeoReferencingLocalOrigin GeoReferencingMode = "local_placement_origin"
	GeoReferencingWorldOrigin GeoReferencingMode = "world_coordinate_system_origin"
	GeoReferencingMapConv     GeoReferencingMode = "map_conversion"
)

// TriangulationRepresentation selects Tessellation vs B-Rep output.
type TriangulationRepresentation string

const (
	RepresentationTessellation TriangulationRepresentation = "tessellation"
	RepresentationBrep         TriangulationRepresentation = "brep"
)

// AttributeConfig maps one source column (terrain) or dotted element
// path (buildings) onto a named attribute of the emitted IFC entity.
type AttributeConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Column string `mapstructure:"column" yaml:"column"`
}

// PropertyConfig maps one source column or path into a named property
// inside a named property set.
type PropertyConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Set    string `mapstructure:"set" yaml:"set"`
	Column string `mapstructure:"column" yaml:"column"`
}

// BuildingPartConfig configures one building-part geometry path within
// a matched CityGML building.
type BuildingPartConfig struct {
	EntityType string            `mapstructure:"entity_type" yaml:"entity_type"`
	PosPath    string            `mapstructure:"pos_path" yaml:"pos_path"`
	ColorRGB   [3]float64        `mapstructure:"color" yaml:"color,flow"`
	Attributes []AttributeConfig `mapstructure:"attributes" yaml:"attributes"`
	Properties []PropertyConfig  `mapstructure:"properties" yaml:"properties"`
}

// FeatureClassConfig configures one mapped source table or CityGML
// building class.
type FeatureClassConfig struct {
	Name            string               `mapstructure:"name" yaml:"name"`
	SQLFile         string               `mapstructure:"sql_file" yaml:"sql_file"`
	EntityType      string               `mapstructure:"entity_type" yaml:"entity_type"`
	IdentifierPath  string               `mapstructure:"identifier_path" yaml:"identifier_path"`
	IsBuildingClass bool                 `mapstructure:"is_building_class" yaml:"is_building_class"`
	Attributes      []AttributeConfig    `mapstructure:"attributes" yaml:"attributes"`
	Properties      []PropertyConfig     `mapstructure:"properties" yaml:"properties"`
	GroupColumns    []string             `mapstructure:"group_columns" yaml:"group_columns"`
	ColorRGB        [3]float64           `mapstructure:"color" yaml:"color,flow"`
	Parts           []BuildingPartConfig `mapstructure:"parts" yaml:"parts"`

	// SQL is the content of SQLFile, read once at load time so workers
	// never touch the filesystem for statements mid-job.
	SQL string `mapstructure:"-" yaml:"-"`
}

// GroupConfig configures one nested dotted-path group hierarchy.
type GroupConfig struct {
	Name            string `mapstructure:"name" yaml:"name"`
	GroupEntityType string `mapstructure:"group_entity_type" yaml:"group_entity_type"`
}

// IfcConfig holds the BIM-assembly parameters: file authorship, geo-
// referencing, representation mode, and the feature-class and group
// mapping rules.
type IfcConfig struct {
	Author                      string                      `mapstructure:"author" yaml:"author"`
	ApplicationName             string                      `mapstructure:"application_name" yaml:"application_name"`
	ApplicationVersion          string                      `mapstructure:"application_version" yaml:"application_version"`
	ProjectName                 string                      `mapstructure:"project_name" yaml:"project_name"`
	GeoReferencing              GeoReferencingMode          `mapstructure:"geo_referencing" yaml:"geo_referencing"`
	ProjectedCRSName            string                      `mapstructure:"projected_crs_name" yaml:"projected_crs_name"`
	TriangulationRepresentation TriangulationRepresentation `mapstructure:"triangulation_representation_type" yaml:"triangulation_representation_type"`
	FeatureClasses              []FeatureClassConfig        `mapstructure:"feature_classes" yaml:"feature_classes"`
	Groups                      []GroupConfig               `mapstructure:"groups" yaml:"groups"`
}

// OutputConfig holds where generated IFC files are written.
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// Load reads configuration from the file at path (if non-empty) layered
// under defaults, then applies CS2BIM_-prefixed environment overrides.
// Unknown document keys are rejected via a strict YAML pre-pass.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := rejectUnknownKeys(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cserr.Wrap(cserr.BadInput, "config.Load", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cserr.Wrap(cserr.BadInput, "config.Load", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadStatements(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// rejectUnknownKeys decodes the document strictly into the Config
// shape, so a typoed or unsupported key fails startup instead of being
// silently dropped (viper's Unmarshal ignores unknown keys).
func rejectUnknownKeys(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cserr.Wrap(cserr.BadInput, "config.Load", err)
	}
	var strict Config
	if err := yaml.UnmarshalStrict(raw, &strict); err != nil {
		return cserr.Wrap(cserr.BadInput, "config.Load", err)
	}
	return nil
}

// loadStatements reads each feature class's SQL file content into
// FeatureClassConfig.SQL, failing startup on an unreadable file the
// same way an invalid key does.
func (c *Config) loadStatements() error {
	for i := range c.Ifc.FeatureClasses {
		fc := &c.Ifc.FeatureClasses[i]
		raw, err := os.ReadFile(fc.SQLFile)
		if err != nil {
			return cserr.Wrap(cserr.UnsupportedConfiguration, "config.Config.loadStatements",
				fmt.Errorf("feature class %s: %w", fc.Name, err))
		}
		fc.SQL = string(raw)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "cs2bim")
	v.SetDefault("database.user", "cs2bim")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.cache_db", 2)
	v.SetDefault("redis.queue_db", 0)
	v.SetDefault("redis.cache_dir", "/var/cache/cs2bim")
	v.SetDefault("redis.ttl_seconds", 86400)
	v.SetDefault("stac.request_timeout_seconds", 10)
	v.SetDefault("stac.fetch_timeout_seconds", 30)
	v.SetDefault("tin.grid_size", 1.0)
	v.SetDefault("tin.max_height_error", 0.1)
	v.SetDefault("ifc.geo_referencing", string(GeoReferencingMapConv))
	v.SetDefault("ifc.triangulation_representation_type", string(RepresentationTessellation))
	v.SetDefault("output.directory", "/var/cs2bim/output")
}

// Validate enforces the document's conditional invariants. A single
// STAC endpoint serves both DTM assets (for terrain feature classes)
// and CityGML assets (for building feature classes), so it is required
// as soon as any feature class of either kind is configured; at least
// one feature class overall must be present for a model to be worth
// generating.
func (c *Config) Validate() error {
	errs := cserr.NewMultiError()

	if len(c.Ifc.FeatureClasses) == 0 {
		errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.feature_classes", "at least one feature class must be configured")
	}

	for _, fc := range c.Ifc.FeatureClasses {
		if fc.IsBuildingClass && fc.IdentifierPath == "" {
			errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.feature_classes["+fc.Name+"].identifier_path", "building feature classes require an identifier_path to match CityGML elements")
		}
		if fc.IsBuildingClass && len(fc.Parts) == 0 {
			errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.feature_classes["+fc.Name+"].parts", "building feature classes require at least one part definition")
		}
		if fc.SQLFile == "" {
			errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.feature_classes["+fc.Name+"].sql_file", "every feature class requires a source query")
		}
	}
	if len(c.Ifc.FeatureClasses) > 0 && c.Stac.Endpoint == "" {
		errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "stac.endpoint", "a STAC endpoint is required to discover DTM and CityGML assets")
	}

	switch c.Ifc.GeoReferencing {
	case GeoReferencingLocalOrigin, GeoReferencingWorldOrigin, GeoReferencingMapConv:
	default:
		errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.geo_referencing", "unknown geo-referencing mode "+string(c.Ifc.GeoReferencing))
	}
	if c.Ifc.GeoReferencing == GeoReferencingMapConv && c.Ifc.ProjectedCRSName == "" {
		errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.projected_crs_name", "map_conversion geo-referencing requires a projected CRS name")
	}

	switch c.Ifc.TriangulationRepresentation {
	case RepresentationTessellation, RepresentationBrep:
	default:
		errs.Add(cserr.UnsupportedConfiguration, "Config.Validate", "ifc.triangulation_representation_type", "unknown representation type "+string(c.Ifc.TriangulationRepresentation))
	}

	return errs.ErrOrNil()
}
