package server

import (
	"net/http"
	"time"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/classification"
	"github.com/janelia-flyem/catvol/nodes"
	"github.com/janelia-flyem/catvol/segment"
	"github.com/janelia-flyem/catvol/storage"
	"github.com/janelia-flyem/catvol/tiles"
	"github.com/janelia-flyem/catvol/volume"

	"github.com/go-playground/validator/v10"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"github.com/zenazn/goji/web"
)

//go:generate go run ../cmd/gen-version -o version_git.go

// Version is the release of the HTTP API.
var Version = "0.1.0"

// gitVersion is set by the generated version_git.go.
var gitVersion = "notag"

// Database is the relational side of the service.
type Database interface {
	segment.Store
	segment.NodeStore
	nodes.Store
	classification.Store
}

// Options tunes a Service.  Zero values select defaults.
type Options struct {
	Workers         int
	TileCacheBytes  int
	BuildsPerMinute int
	Workspace       int64
	CorsDomains     []string
	Host            string
	Note            string
}

// Service holds the stores and components behind the HTTP API.
type Service struct {
	db        Database
	kv        storage.Store
	locks     *volume.Locker
	segments  *segment.Service
	assembler *volume.Assembler
	tiles     *tiles.Server
	builds    *limiter.Limiter
	validate  *validator.Validate
	opts      Options
	started   time.Time
	mux       *web.Mux
}

// NewService wires the components over a database and a key-value store.
func NewService(db Database, kv storage.Store, opts Options) *Service {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.BuildsPerMinute <= 0 {
		opts.BuildsPerMinute = DefaultBuildsPerMinute
	}
	locks := volume.NewLocker()
	s := &Service{
		db:        db,
		kv:        kv,
		locks:     locks,
		segments:  segment.NewService(db, db, kv),
		assembler: volume.NewAssembler(db, kv, locks, opts.Workers),
		tiles:     tiles.NewServer(kv, locks, opts.TileCacheBytes),
		builds: limiter.New(memory.NewStore(), limiter.Rate{
			Period: time.Minute,
			Limit:  int64(opts.BuildsPerMinute),
		}),
		validate: validator.New(),
		opts:     opts,
		started:  time.Now(),
	}
	s.mux = s.routes()
	catvol.Infof("Service ready over store %s\n", kv)
	return s
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
