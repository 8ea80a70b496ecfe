package cfg

import (
	"reflect"

	"github.com/caarlos0/env/v11"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

// Config drives the traffic simulator. Every knob has a default so the
// binary can run without any environment set up.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"vma-sim"`
	Debug       bool   `env:"DEBUG"`

	BaseAddr memaddr.VirtAddr `env:"BASE_ADDR" envDefault:"0x7f0000000000"`
	PageSize memaddr.PageSize `env:"PAGE_SIZE" envDefault:"4K"`

	RegionCount int `env:"REGION_COUNT" envDefault:"8"`
	RegionPages int `env:"REGION_PAGES" envDefault:"64"`

	FaultCount   int `env:"FAULT_COUNT"   envDefault:"4096"`
	FaultWorkers int `env:"FAULT_WORKERS" envDefault:"16"`

	UnmapEvery    int `env:"UNMAP_EVERY"    envDefault:"512"`
	PrefaultEvery int `env:"PREFAULT_EVERY" envDefault:"1024"`

	Seed int64 `env:"SEED"`
}

func Parse() (Config, error) {
	return env.ParseAsWithOptions[Config](env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(memaddr.VirtAddr(0)): memaddr.ParseVirtAddr,
			reflect.TypeOf(memaddr.PageSize(0)): memaddr.ParsePageSize,
		},
	})
}
