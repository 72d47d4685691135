package localfs

import (
	"flag"
	"fmt"
	"path/filepath"

	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/registry"
)

var flagLocalDir string

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "localfs",
		Description: "Filesystem chunk store (directory)",
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "chunk store directory (for -store=localfs)")
		},
		Open: func(instance string) (hoststore.Store, func() error, error) {
			if flagLocalDir == "" {
				return nil, nil, fmt.Errorf("missing -localfs-dir")
			}
			dir := flagLocalDir
			if instance != "" {
				dir = filepath.Join(dir, instance)
			}
			s, err := New(dir)
			return s, nil, err
		},
	})
}
