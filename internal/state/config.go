package state

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/thermopost/hardware/bme280"
	"github.com/temoto/thermopost/helpers"
	"github.com/temoto/thermopost/log2"
	tele_config "github.com/temoto/thermopost/tele/config"
)

const (
	DefaultSensorBus       = "/dev/i2c-1"
	DefaultClockMinYear    = 2016
	DefaultClockRetries    = 10
	DefaultClockSec        = 2
	DefaultCollectorListen = ":8000"
	DefaultCollectorKeep   = 100
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Tele tele_config.Config `hcl:"tele"`

	Sensor struct {
		// "mock" skips hardware, for bench runs
		Bus  string `hcl:"bus"`
		Addr int    `hcl:"addr"`
	} `hcl:"sensor"`
	Sampler struct {
		IntervalMs int `hcl:"interval_ms"`
	} `hcl:"sampler"`
	Clock struct {
		WaitRetries int `hcl:"wait_retries"`
		WaitSec     int `hcl:"wait_sec"`
		MinYear     int `hcl:"min_year"`
	} `hcl:"clock"`
	Log struct {
		Level string `hcl:"level"`
	} `hcl:"log"`
	Collector struct {
		Listen string `hcl:"listen"`
		Keep   int    `hcl:"keep"`
	} `hcl:"collector"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) SampleInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Sampler.IntervalMs, time.Second)
}

func (c *Config) ClockWait() time.Duration {
	return helpers.IntSecondDefault(c.Clock.WaitSec, DefaultClockSec*time.Second)
}

// Normalize fills defaults and validates values fixed for process lifetime.
func (c *Config) Normalize() error {
	errs := make([]error, 0, 4)
	if err := c.Tele.Normalize(); err != nil {
		errs = append(errs, errors.Annotate(err, "config: tele"))
	}
	if c.Sensor.Bus == "" {
		c.Sensor.Bus = DefaultSensorBus
	}
	switch {
	case c.Sensor.Addr == 0:
		c.Sensor.Addr = bme280.DefaultAddr
	case c.Sensor.Addr < 0 || c.Sensor.Addr > 0x7f:
		errs = append(errs, errors.NotValidf("config: sensor.addr=%#x", c.Sensor.Addr))
	}
	if c.Sampler.IntervalMs < 0 {
		errs = append(errs, errors.NotValidf("config: sampler.interval_ms=%d", c.Sampler.IntervalMs))
	}
	if c.Clock.WaitRetries == 0 {
		c.Clock.WaitRetries = DefaultClockRetries
	}
	if c.Clock.MinYear == 0 {
		c.Clock.MinYear = DefaultClockMinYear
	}
	if _, err := log2.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, errors.Annotate(err, "config: log.level"))
	}
	if c.Collector.Listen == "" {
		c.Collector.Listen = DefaultCollectorListen
	}
	if c.Collector.Keep <= 0 {
		c.Collector.Keep = DefaultCollectorKeep
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads all names in order, later sources override earlier ones.
// Result is normalized.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if len(errs) == 0 {
		if err := c.Normalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
