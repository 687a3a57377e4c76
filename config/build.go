package config

import (
	"database/sql"
	"fmt"

	"github.com/arloliu/rudder"
	"github.com/arloliu/rudder/balance"
	"github.com/arloliu/rudder/probe"
	"github.com/arloliu/rudder/types"

	sqladapter "github.com/arloliu/rudder/adapter/sql"
)

// BuildRegistry opens every configured data source and returns a static
// registry over them.
//
// Connections are opened lazily by database/sql; an unreachable node shows
// up as a per-source probe failure during discovery, not here. The caller
// owns closing the returned databases.
//
// Returns:
//   - *rudder.StaticRegistry: Registry with one pool per configuration entry
//   - []*sql.DB: The opened databases, for lifecycle management
//   - error: Driver resolution failure
func (f *File) BuildRegistry() (*rudder.StaticRegistry, []*sql.DB, error) {
	registry := rudder.NewStaticRegistry()
	var opened []*sql.DB

	for name, pool := range f.Pools {
		sources := make([]types.DataSource, 0, len(pool.Sources))
		for _, src := range pool.Sources {
			db, err := sql.Open(src.Driver, src.DSN)
			if err != nil {
				closeAll(opened)
				return nil, nil, fmt.Errorf("%w: source %s: %v", types.ErrInvalidConfiguration, src.Name, err)
			}
			opened = append(opened, db)

			adapted, err := sqladapter.NewSource(src.Name, db)
			if err != nil {
				closeAll(opened)
				return nil, nil, err
			}
			sources = append(sources, adapted)
		}
		registry.SetPool(name, sources)
	}

	return registry, opened, nil
}

// BuildEngine constructs an engine with every configured pool, resolving
// discovery providers and balance policies from their registries.
//
// Parameters:
//   - registry: Supplies data source handles per pool
//   - opts: Engine options (logger, metrics, defaults)
//
// Returns:
//   - *rudder.Engine: A fully configured engine
//   - error: Provider or policy resolution/configuration failure
func (f *File) BuildEngine(registry rudder.SourceRegistry, opts ...rudder.Option) (*rudder.Engine, error) {
	engine, err := rudder.NewEngine(registry, opts...)
	if err != nil {
		return nil, err
	}

	for name, pool := range f.Pools {
		provider, err := probe.New(pool.Discovery.Type)
		if err != nil {
			return nil, err
		}
		if err := provider.Configure(pool.Discovery.Props); err != nil {
			return nil, fmt.Errorf("pool %s: %w", name, err)
		}

		poolOpts := []rudder.PoolOption{
			rudder.WithDiscoveryInterval(pool.Discovery.Interval.Std()),
		}
		if pool.Discovery.ProbeTimeout > 0 {
			poolOpts = append(poolOpts, rudder.WithPoolProbeTimeout(pool.Discovery.ProbeTimeout.Std()))
		}

		if pool.LoadBalance.Type != "" {
			policy, err := balance.New(pool.LoadBalance.Type, pool.LoadBalance.Weights)
			if err != nil {
				return nil, fmt.Errorf("pool %s: %w", name, err)
			}
			poolOpts = append(poolOpts, rudder.WithBalancePolicy(policy))
		}

		if err := engine.AddPool(name, provider, poolOpts...); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// closeAll closes already-opened databases after a build failure.
func closeAll(dbs []*sql.DB) {
	for _, db := range dbs {
		_ = db.Close()
	}
}
