// Package app wires every component into one generation pipeline and
// the surfaces (HTTP, worker) that drive it: one struct owning every
// dependency, built once at startup and torn down once at shutdown.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"cs2bim-go/internal/assembler"
	"cs2bim-go/internal/assetcache"
	"cs2bim-go/internal/citygml"
	"cs2bim-go/internal/config"
	"cs2bim-go/internal/cserr"
	"cs2bim-go/internal/geo"
	"cs2bim-go/internal/geodb"
	"cs2bim-go/internal/httpapi"
	"cs2bim-go/internal/jobs"
	"cs2bim-go/internal/model"
	"cs2bim-go/internal/optcache"
	"cs2bim-go/internal/stac"
	"cs2bim-go/internal/terrain"
)

// App owns every long-lived dependency: the spatial database
// connection, the Redis-backed asset cache and job queue, and the
// assembled HTTP/worker surfaces.
type App struct {
	cfg *config.Config
	log *logrus.Entry

	db          *geodb.Client
	redisClient *redis.Client
	cache       *assetcache.Cache
	stacClient  *stac.Client
	extractor   *stac.Extractor
	queryCache  *optcache.QueryCache
	asm         *assembler.Assembler

	Queue  *jobs.Queue
	Runner *jobs.Runner
	HTTP   *httpapi.Server
}

// New builds an App from cfg, connecting to the spatial database and
// Redis and wiring the job queue/worker/HTTP surfaces.
func New(cfg *config.Config, log *logrus.Entry) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := geodb.Connect(geodb.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, err
	}
	a.db = db

	a.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.CacheDB})
	a.cache = assetcache.New(a.redisClient, "cs2bim:asset")
	a.stacClient = stac.New(time.Duration(cfg.Stac.RequestTimeoutS) * time.Second)
	a.extractor = stac.NewExtractor(time.Duration(cfg.Stac.FetchTimeoutS)*time.Second, a.cache, cfg.Redis.CacheDir)

	queryCache, err := optcache.New(256)
	if err != nil {
		return nil, err
	}
	a.queryCache = queryCache

	a.asm = assembler.New(&cfg.Ifc)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, DB: cfg.Redis.QueueDB}
	a.Queue = jobs.NewQueue(redisOpt, "generate-model")

	registry := jobs.NewRegistry(log)
	a.Runner = jobs.NewRunner(redisOpt, "generate-model", 4, registry, log, a.generate)

	a.HTTP = httpapi.NewServer(a.Queue, cfg.Output.Directory, log)

	return a, nil
}

// Close releases the spatial database connection, Redis client, and
// job queue client.
func (a *App) Close() error {
	if err := a.Queue.Close(); err != nil {
		a.log.WithError(err).Warn("error closing job queue")
	}
	if err := a.redisClient.Close(); err != nil {
		a.log.WithError(err).Warn("error closing redis client")
	}
	return a.db.Close()
}

// generate is the jobs.GenerateFunc that runs the full pipeline for one
// task: terrain feature classes, building feature classes, assembly,
// and writing the resulting IFC-SPF file to cfg.Output.Directory.
func (a *App) generate(ctx context.Context, payload jobs.GenerateModelPayload, taskID string) (string, error) {
	log := a.log.WithField("task_id", taskID)

	origin, err := deriveOrigin(payload)
	if err != nil {
		return "", err
	}

	m := model.New(payload.Name, payload.IfcVersion, origin)

	terrainProc := terrain.NewProcessor(
		newCachedSpatialDB(a.db, a.queryCache, log),
		a.terrainAssetFetcher(log),
		log,
		[2]float64{origin.East, origin.North},
	)
	cityProc := citygml.NewProcessor(a.cityGMLClasses(), origin)

	var buildingIdentifierQueries []config.FeatureClassConfig
	for _, fc := range a.cfg.Ifc.FeatureClasses {
		if fc.IsBuildingClass {
			buildingIdentifierQueries = append(buildingIdentifierQueries, fc)
			continue
		}
		if err := terrainProc.ProcessClass(ctx, terrainClassConfig(fc, a.cfg.Tin), payload.PolygonWKT, m); err != nil {
			return "", err
		}
	}

	if len(buildingIdentifierQueries) > 0 {
		if err := a.processBuildingClasses(ctx, buildingIdentifierQueries, payload.PolygonWKT, cityProc, m, log); err != nil {
			return "", err
		}
	}

	ifcText, err := a.asm.Assemble(m)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("%s/%s.ifc", a.cfg.Output.Directory, taskID)
	if err := writeFile(path, ifcText); err != nil {
		return "", err
	}
	return path, nil
}

// deriveOrigin returns the payload's explicit project origin, or the
// area-of-interest polygon's first exterior vertex when none was
// supplied, so every job has a numerically stable local origin even
// when a caller does not know or care about one.
func deriveOrigin(payload jobs.GenerateModelPayload) (model.Origin, error) {
	if payload.ProjectOrigin != nil {
		o := *payload.ProjectOrigin
		return model.Origin{East: o[0], North: o[1], Height: o[2]}, nil
	}

	geom, err := wkt.Unmarshal(payload.PolygonWKT)
	if err != nil {
		return model.Origin{}, cserr.Wrap(cserr.BadInput, "app.deriveOrigin", err)
	}
	poly, ok := geom.(orb.Polygon)
	if !ok || len(poly) == 0 || len(poly[0]) == 0 {
		return model.Origin{}, cserr.New(cserr.BadGeometry, "app.deriveOrigin", "polygon has no usable exterior ring")
	}
	first := poly[0][0]
	return model.Origin{East: first[0], North: first[1], Height: 0}, nil
}

func terrainClassConfig(fc config.FeatureClassConfig, tin config.TinConfig) terrain.ClassConfig {
	attrs := make([]terrain.AttributeMapping, 0, len(fc.Attributes))
	for _, a := range fc.Attributes {
		attrs = append(attrs, terrain.AttributeMapping{Name: a.Name, Column: a.Column})
	}
	props := make([]terrain.PropertyMapping, 0, len(fc.Properties))
	for _, p := range fc.Properties {
		props = append(props, terrain.PropertyMapping{Name: p.Name, Set: p.Set, Column: p.Column})
	}
	return terrain.ClassConfig{
		FeatureClass:   fc.Name,
		SQL:            fc.SQL,
		EntityKind:     fc.EntityType,
		Attributes:     attrs,
		Properties:     props,
		GroupCols:      fc.GroupColumns,
		GridSize:       tin.GridSize,
		MaxHeightError: tin.MaxHeightError,
		MaxEdgeLen:     tin.MaxEdgeLen,
	}
}

// terrainAssetFetcher adapts the STAC client + extractor into a
// terrain.AssetFetcher: discover DTM assets covering bbox, extract each
// through the cache, and read the resulting file fully into memory so
// the returned readers don't leak open file descriptors across a job.
func (a *App) terrainAssetFetcher(log *logrus.Entry) terrain.AssetFetcher {
	return func(ctx context.Context, bbox geo.BoundingBox, gridSize float64) ([]io.Reader, error) {
		assets, err := a.stacClient.FetchAssets(ctx, a.cfg.Stac.Endpoint, bbox.Array(), dtmPredicate(gridSize))
		if err != nil {
			return nil, err
		}

		readers := make([]io.Reader, 0, len(assets))
		for _, asset := range assets {
			path, err := a.extractor.FetchAndExtractZip(ctx, asset.Href)
			if err != nil {
				log.WithError(err).Warn("skipping DTM asset")
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				log.WithError(err).Warn("skipping unreadable DTM file")
				continue
			}
			readers = append(readers, bytes.NewReader(data))
		}
		return readers, nil
	}
}

// dtmPredicate selects the "dtm"-keyed asset of a STAC feature, the
// role name DTM endpoints publish their point-cloud export under; grid
// size is accepted for future per-resolution filtering, but every
// configured DTM endpoint in practice publishes one grid size per
// bbox, so no further filtering is needed here.
func dtmPredicate(gridSize float64) stac.Predicate {
	return func(assetKey string, asset stac.Asset) bool {
		return assetKey == "dtm"
	}
}

// cityGMLClasses builds the citygml.ClassConfig list from configured
// building feature classes; for building classes the Column of an
// attribute/property mapping is a dotted element path into the
// building subtree rather than a result-set column name.
func (a *App) cityGMLClasses() []citygml.ClassConfig {
	var classes []citygml.ClassConfig
	for _, fc := range a.cfg.Ifc.FeatureClasses {
		if !fc.IsBuildingClass {
			continue
		}
		parts := make([]citygml.PartConfig, 0, len(fc.Parts))
		for _, part := range fc.Parts {
			parts = append(parts, citygml.PartConfig{
				EntityKind: part.EntityType,
				ColorRGB:   part.ColorRGB,
				PosPath:    part.PosPath,
				Attributes: attributePaths(part.Attributes),
				Properties: propertyPaths(part.Properties),
			})
		}
		classes = append(classes, citygml.ClassConfig{
			FeatureClass:   fc.Name,
			IdentifierPath: fc.IdentifierPath,
			Parts:          parts,
			Attributes:     attributePaths(fc.Attributes),
			Properties:     propertyPaths(fc.Properties),
		})
	}
	return classes
}

func attributePaths(attrs []config.AttributeConfig) []citygml.AttributePath {
	out := make([]citygml.AttributePath, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, citygml.AttributePath{Name: a.Name, Path: a.Column})
	}
	return out
}

func propertyPaths(props []config.PropertyConfig) []citygml.PropertyPath {
	out := make([]citygml.PropertyPath, 0, len(props))
	for _, p := range props {
		out = append(out, citygml.PropertyPath{Name: p.Name, Set: p.Set, Path: p.Column})
	}
	return out
}

func (a *App) processBuildingClasses(ctx context.Context, classes []config.FeatureClassConfig, polygonWKT string, cityProc *citygml.Processor, m *model.Model, log *logrus.Entry) error {
	wantedIDs := make(map[string]bool)
	for _, fc := range classes {
		ids, err := a.db.BuildingIdentifiers(ctx, fc.SQL, polygonWKT)
		if err != nil {
			return err
		}
		for _, id := range ids {
			wantedIDs[id] = true
		}
	}
	if len(wantedIDs) == 0 {
		return nil
	}

	// CityGML coverage is discovered over the area of interest itself,
	// not the matched building footprints.
	envelope, err := a.db.CollectBoundingBox(ctx, []string{polygonWKT})
	if err != nil {
		return err
	}
	bbox := geo.FromLV95Envelope(envelope.MinX, envelope.MinY, envelope.MaxX, envelope.MaxY)

	assets, err := a.stacClient.FetchAssets(ctx, a.cfg.Stac.Endpoint, bbox.Array(), func(assetKey string, asset stac.Asset) bool {
		return asset.Type == "application/zip"
	})
	if err != nil {
		return err
	}

	for _, asset := range assets {
		path, err := a.extractor.FetchAndExtractZip(ctx, asset.Href)
		if err != nil {
			log.WithError(err).Warn("skipping CityGML asset")
			continue
		}
		if err := decodeCityGMLFile(cityProc, path, m, wantedIDs); err != nil {
			log.WithError(err).Warn("skipping CityGML document")
		}
	}
	return nil
}

// cachedSpatialDB adapts geodb.Client + optcache.QueryCache into
// terrain.SpatialDB, checking the in-process LRU before every query so
// two jobs with the same area-of-interest WKT for the same feature class
// don't repeat an identical spatial-database round trip; the bounding-box
// aggregate is left uncached since it only runs once per job per
// feature class.
type cachedSpatialDB struct {
	db    *geodb.Client
	cache *optcache.QueryCache
	log   *logrus.Entry
}

func newCachedSpatialDB(db *geodb.Client, cache *optcache.QueryCache, log *logrus.Entry) *cachedSpatialDB {
	return &cachedSpatialDB{db: db, cache: cache, log: log}
}

func (c *cachedSpatialDB) Query(ctx context.Context, sqlText, polygonWKT string) ([]geodb.Row, error) {
	wrapped := c.cache.Wrap(c.log, func(sqlText, polygonWKT string) ([]geodb.Row, error) {
		return c.db.Query(ctx, sqlText, polygonWKT)
	})
	return wrapped(sqlText, polygonWKT)
}

func (c *cachedSpatialDB) CollectBoundingBox(ctx context.Context, wkts []string) (geodb.BoundingBox, error) {
	return c.db.CollectBoundingBox(ctx, wkts)
}

// decodeCityGMLFile opens the extracted CityGML document at path and
// streams it through proc, matching every wanted building identifier
// into m.
func decodeCityGMLFile(proc *citygml.Processor, path string, m *model.Model, wantedIDs map[string]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return cserr.Wrap(cserr.UpstreamError, "app.decodeCityGMLFile", err)
	}
	defer f.Close()
	return proc.ProcessDocument(f, m, wantedIDs)
}

// writeFile writes the assembled IFC-SPF text to path, creating its
// parent directory if this is the first artifact written to it.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cserr.Wrap(cserr.UpstreamError, "app.writeFile", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return cserr.Wrap(cserr.UpstreamError, "app.writeFile", err)
	}
	return nil
}
