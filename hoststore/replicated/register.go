package replicated

import (
	"flag"
	"fmt"
	"path/filepath"

	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/localfs"
	"xdao.co/candep/hoststore/memory"
	"xdao.co/candep/hoststore/registry"
)

var flagReplicatedDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "replicated",
		Description: "In-memory chunk store mirrored to a directory",
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagReplicatedDir, "replicated-dir", "", "mirror directory (for -store=replicated)")
		},
		Open: func(instance string) (hoststore.Store, func() error, error) {
			if flagReplicatedDir == "" {
				return nil, nil, fmt.Errorf("missing -replicated-dir")
			}
			dir := flagReplicatedDir
			if instance != "" {
				dir = filepath.Join(dir, instance)
			}
			durable, err := localfs.New(dir)
			if err != nil {
				return nil, nil, err
			}
			s, err := New(memory.New(), durable)
			return s, nil, err
		},
	})
}
