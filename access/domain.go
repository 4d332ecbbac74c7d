package access

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/sorter"
	"github.com/syssam/cayenne/validation"
)

// DataDomain is the runtime shared by the object contexts of one
// application: the mapping, the database adapter and driver, the entity
// sorter, the shared query cache and the commit policy. A DataDomain is
// safe for concurrent use; contexts created from it are not.
type DataDomain struct {
	dataMap  *mapping.DataMap
	adapter  *adapter.Adapter
	driver   dialect.Driver
	sorter   *sorter.EntitySorter
	cache    cayenne.Cache
	cacheTTL time.Duration
	policy   validation.Rule
	logger   *slog.Logger
	loads    singleflight.Group
}

// Option configures a DataDomain.
type Option func(*DataDomain) error

// WithAdapter sets the adapter. It defaults to the adapter registered for
// the dialect of the driver.
func WithAdapter(a *adapter.Adapter) Option {
	return func(d *DataDomain) error {
		if a == nil {
			return errors.New("access: nil adapter")
		}
		d.adapter = a
		return nil
	}
}

// WithCache sets the shared query cache and the lifetime of its entries.
// A zero ttl keeps entries until a commit invalidates them.
func WithCache(c cayenne.Cache, ttl time.Duration) Option {
	return func(d *DataDomain) error {
		d.cache, d.cacheTTL = c, ttl
		return nil
	}
}

// WithPolicy sets the rule every change is validated with before commit.
func WithPolicy(rule validation.Rule) Option {
	return func(d *DataDomain) error {
		d.policy = rule
		return nil
	}
}

// WithLogger sets the logger. It defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *DataDomain) error {
		if l == nil {
			return errors.New("access: nil logger")
		}
		d.logger = l
		return nil
	}
}

// NewDataDomain returns a domain for the DataMap on top of the driver.
func NewDataDomain(m *mapping.DataMap, drv dialect.Driver, opts ...Option) (*DataDomain, error) {
	if m == nil {
		return nil, errors.New("access: nil data map")
	}
	if drv == nil {
		return nil, errors.New("access: nil driver")
	}
	d := &DataDomain{
		dataMap: m,
		driver:  drv,
		sorter:  sorter.New(m),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.adapter == nil {
		a, err := adapter.Lookup(drv.Dialect())
		if err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
		d.adapter = a
	}
	return d, nil
}

// DataMap returns the mapping of the domain.
func (d *DataDomain) DataMap() *mapping.DataMap { return d.dataMap }

// Adapter returns the database adapter.
func (d *DataDomain) Adapter() *adapter.Adapter { return d.adapter }

// Driver returns the database driver.
func (d *DataDomain) Driver() dialect.Driver { return d.driver }

// Sorter returns the entity sorter ordering commit operations.
func (d *DataDomain) Sorter() *sorter.EntitySorter { return d.sorter }

// NewContext returns a new object context for one unit of work.
func (d *DataDomain) NewContext() *DataContext {
	return newContext(d)
}

// Close closes the driver.
func (d *DataDomain) Close() error {
	return d.driver.Close()
}

func (d *DataDomain) entity(name string) (*mapping.Entity, error) {
	e := d.dataMap.Entity(name)
	if e == nil {
		return nil, fmt.Errorf("access: %w: %q", mapping.ErrUnknownEntity, name)
	}
	return e, nil
}
