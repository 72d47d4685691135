package memory

import (
	"flag"

	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:          "memory",
		Description:   "In-memory chunk store (non-persistent)",
		RegisterFlags: func(fs *flag.FlagSet) {},
		Open: func(string) (hoststore.Store, func() error, error) {
			return New(), nil, nil
		},
	})
}
