package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"xdao.co/candep/host"
	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/registry"
	"xdao.co/candep/principal"
	"xdao.co/candep/transport/grpcagent"

	_ "xdao.co/candep/hoststore/localfs"
	_ "xdao.co/candep/hoststore/memory"
	_ "xdao.co/candep/hoststore/replicated"
)

func main() {
	fs := flag.NewFlagSet("candep-hostd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:8787", "listen address")
	store := fs.String("store", "memory", "chunk store backend name")
	maxMsg := fs.Int("max-msg-bytes", 4<<20, "gRPC max message size")
	listStores := fs.Bool("list-stores", false, "List supported store backends and exit")

	registry.RegisterFlags(fs)

	_ = fs.Parse(os.Args[1:])
	if *listStores {
		for _, b := range registry.List() {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	// Each canister gets its own store instance from the selected
	// backend; localfs backends open per-canister subdirectories.
	storeName := *store
	if _, closeFn, err := registry.Open(storeName, ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	} else if closeFn != nil {
		_ = closeFn()
	}
	newStore := func(id principal.Principal) hoststore.Store {
		s, _, err := registry.Open(storeName, id.String())
		if err != nil {
			panic(err)
		}
		return s
	}

	h := host.New(newStore)

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(*maxMsg),
		grpc.MaxSendMsgSize(*maxMsg),
	)
	grpcagent.RegisterAgentServer(s, &grpcagent.Server{Handler: h})

	fmt.Fprintf(os.Stderr, "candep-hostd listening on %s (store=%s)\n", lis.Addr().String(), storeName)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
