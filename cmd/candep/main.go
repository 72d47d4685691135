package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"xdao.co/candep/agent"
	"xdao.co/candep/digest"
	"xdao.co/candep/identity"
	"xdao.co/candep/mgmt"
	"xdao.co/candep/principal"
	"xdao.co/candep/transport/grpcagent"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "create":
		return cmdCreate(args[1:], out, errOut)
	case "status":
		return cmdStatus(args[1:], out, errOut)
	case "install":
		return cmdInstall(args[1:], out, errOut)
	case "upload-chunk":
		return cmdUploadChunk(args[1:], out, errOut)
	case "stored-chunks":
		return cmdStoredChunks(args[1:], out, errOut)
	case "clear-chunks":
		return cmdClearChunks(args[1:], out, errOut)
	case "start":
		return cmdLifecycle(args[1:], out, errOut, "start")
	case "stop":
		return cmdLifecycle(args[1:], out, errOut, "stop")
	case "delete":
		return cmdLifecycle(args[1:], out, errOut, "delete")
	case "uninstall":
		return cmdLifecycle(args[1:], out, errOut, "uninstall")
	case "raw-rand":
		return cmdRawRand(args[1:], out, errOut)
	case "principal":
		return cmdPrincipal(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "candep: canister install and lifecycle client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  candep create [--cycles <n>] [--controller <principal> ...]")
	fmt.Fprintln(w, "  candep status --canister <principal>")
	fmt.Fprintln(w, "  candep install --canister <principal> --wasm <file> [--mode install|reinstall|upgrade] [--arg-hex <hex>] [--chunk-size <n>] [--threshold <n>] [--concurrency <n>] [--no-cleanup]")
	fmt.Fprintln(w, "  candep upload-chunk --canister <principal> <file> [<file> ...]")
	fmt.Fprintln(w, "  candep stored-chunks --canister <principal>")
	fmt.Fprintln(w, "  candep clear-chunks --canister <principal>")
	fmt.Fprintln(w, "  candep start|stop|delete|uninstall --canister <principal>")
	fmt.Fprintln(w, "  candep raw-rand")
	fmt.Fprintln(w, "  candep principal [--seed-hex <64hex>] [--label <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Connection flags (accepted by every remote command):")
	fmt.Fprintln(w, "  --host <addr>        host daemon address (default 127.0.0.1:8787)")
	fmt.Fprintln(w, "  --seed-hex <64hex>   ed25519 seed; omit to call anonymously")
	fmt.Fprintln(w, "  --label <name>       derive the signing key from the seed per label")
	fmt.Fprintln(w, "  --timeout <dur>      per-call timeout (default 30s)")
	fmt.Fprintln(w, "  --max-msg-bytes <n>  gRPC message size limit (default 4MiB)")
}

// connFlags is the connection and identity configuration shared by
// every remote command.
type connFlags struct {
	host        string
	seedHex     string
	label       string
	timeout     time.Duration
	maxMsgBytes int
}

func (c *connFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.host, "host", "127.0.0.1:8787", "host daemon address")
	fs.StringVar(&c.seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars (omit for anonymous)")
	fs.StringVar(&c.label, "label", "", "optional derivation label applied to --seed-hex")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "per-call timeout")
	fs.IntVar(&c.maxMsgBytes, "max-msg-bytes", 4<<20, "gRPC message size limit")
}

func (c *connFlags) identity() (identity.Identity, error) {
	if c.seedHex == "" {
		if c.label != "" {
			return nil, fmt.Errorf("--label requires --seed-hex")
		}
		return identity.Anonymous{}, nil
	}
	seed, err := hex.DecodeString(strings.TrimSpace(c.seedHex))
	if err != nil {
		return nil, fmt.Errorf("invalid --seed-hex: %v", err)
	}
	if c.label != "" {
		seed, err = identity.DeriveSeed(seed, c.label)
		if err != nil {
			return nil, err
		}
	}
	return identity.NewEd25519FromSeed(seed)
}

// connect dials the host daemon and wires up a management client. The
// returned close function releases the connection.
func (c *connFlags) connect() (*mgmt.Client, func(), error) {
	id, err := c.identity()
	if err != nil {
		return nil, nil, err
	}
	sub, err := grpcagent.Dial(c.host, grpcagent.DialOptions{
		Timeout:     c.timeout,
		MaxMsgBytes: c.maxMsgBytes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %v", c.host, err)
	}
	sub.Timeout = c.timeout
	client := mgmt.NewClient(agent.New(sub, id))
	return client, func() { _ = sub.Close() }, nil
}

func (c *connFlags) ctx() (context.Context, context.CancelFunc) {
	// Chunked installs make many calls; the per-call timeout is applied
	// by the transport, so the command context only bounds the whole run.
	return context.WithTimeout(context.Background(), 10*c.timeout)
}

func parseCanister(text string) (principal.Principal, error) {
	if text == "" {
		return principal.Principal{}, fmt.Errorf("missing --canister")
	}
	return principal.Decode(text)
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdCreate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var cycles uint64
	var controllers stringList
	conn.register(fs)
	fs.Uint64Var(&cycles, "cycles", 0, "initial cycle balance")
	fs.Var(&controllers, "controller", "controller principal (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	b := client.CreateCanister()
	if cycles > 0 {
		b = b.WithCycles(cycles)
	}
	if len(controllers) > 0 {
		ps := make([]principal.Principal, 0, len(controllers))
		for _, c := range controllers {
			p, derr := principal.Decode(c)
			if derr != nil {
				fmt.Fprintf(errOut, "invalid --controller %q: %v\n", c, derr)
				return 2
			}
			ps = append(ps, p)
		}
		b = b.WithControllers(ps...)
	}

	ctx, cancel := conn.ctx()
	defer cancel()
	id, err := b.Call(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "create: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdStatus(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	st, err := client.CanisterStatus(ctx, target)
	if err != nil {
		fmt.Fprintf(errOut, "status: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "Status:      %s\n", st.Status)
	if len(st.ModuleHash) > 0 {
		fmt.Fprintf(out, "Module-Hash: %s\n", hex.EncodeToString(st.ModuleHash))
	} else {
		fmt.Fprintln(out, "Module-Hash: (no code installed)")
	}
	fmt.Fprintf(out, "Memory:      %d\n", st.MemorySize)
	fmt.Fprintf(out, "Cycles:      %d\n", st.Cycles)
	for _, c := range st.Settings.Controllers {
		p, perr := principal.FromRaw(c)
		if perr != nil {
			continue
		}
		fmt.Fprintf(out, "Controller:  %s\n", p)
	}
	return 0
}

func cmdInstall(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	var wasmPath string
	var mode string
	var argHex string
	var chunkSize int
	var threshold int
	var concurrency int
	var noCleanup bool
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")
	fs.StringVar(&wasmPath, "wasm", "", "module file to install")
	fs.StringVar(&mode, "mode", "install", "install mode: install, reinstall, or upgrade")
	fs.StringVar(&argHex, "arg-hex", "", "hex-encoded init args passed to the module")
	fs.IntVar(&chunkSize, "chunk-size", 0, "chunk window size in bytes (0 uses the default)")
	fs.IntVar(&threshold, "threshold", 0, "module size above which the chunked path is taken (0 uses the default)")
	fs.IntVar(&concurrency, "concurrency", 0, "parallel chunk uploads (0 uses the default)")
	fs.BoolVar(&noCleanup, "no-cleanup", false, "keep the chunk store after a successful chunked install")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if wasmPath == "" {
		fmt.Fprintln(errOut, "missing --wasm")
		return 2
	}

	var installMode mgmt.InstallMode
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "install":
		installMode = mgmt.ModeInstall
	case "reinstall":
		installMode = mgmt.ModeReinstall
	case "upgrade":
		installMode = mgmt.ModeUpgrade
	default:
		fmt.Fprintln(errOut, "invalid --mode (expected install, reinstall, or upgrade)")
		return 2
	}

	var initArg []byte
	if argHex != "" {
		initArg, err = hex.DecodeString(argHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --arg-hex: %v\n", err)
			return 2
		}
	}

	wasm, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Fprintf(errOut, "read wasm: %v\n", err)
		return 1
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	b := client.Install(target, wasm).WithMode(installMode)
	if initArg != nil {
		b = b.WithRawArg(initArg)
	}
	if chunkSize > 0 {
		b = b.WithMaxChunkSize(chunkSize)
	}
	if threshold > 0 {
		b = b.WithOneShotThreshold(threshold)
	}
	if concurrency > 0 {
		b = b.WithConcurrency(concurrency)
	}
	if noCleanup {
		b = b.WithNoCleanup()
	}

	ctx, cancel := conn.ctx()
	defer cancel()
	if err := b.Call(ctx); err != nil {
		fmt.Fprintf(errOut, "install: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Installed %d bytes (%s)\n", len(wasm), digest.Sum(wasm))
	return 0
}

func cmdUploadChunk(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("upload-chunk", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: candep upload-chunk --canister <principal> <file> [<file> ...]")
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	for _, path := range fs.Args() {
		chunk, rerr := os.ReadFile(path)
		if rerr != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", path, rerr)
			return 1
		}
		d, uerr := client.UploadChunk(ctx, target, chunk)
		if uerr != nil {
			fmt.Fprintf(errOut, "upload %s: %v\n", path, uerr)
			return 1
		}
		fmt.Fprintf(out, "%s\t%s\n", d, path)
	}
	return 0
}

func cmdStoredChunks(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("stored-chunks", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	stored, err := client.StoredChunks(ctx, target)
	if err != nil {
		fmt.Fprintf(errOut, "stored-chunks: %v\n", err)
		return 1
	}

	lines := make([]string, 0, len(stored))
	for d := range stored {
		lines = append(lines, d.String())
	}
	sort.Strings(lines)
	for _, l := range lines {
		_, _ = fmt.Fprintln(out, l)
	}
	return 0
}

func cmdClearChunks(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("clear-chunks", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	if err := client.ClearChunkStore(ctx, target); err != nil {
		fmt.Fprintf(errOut, "clear-chunks: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdLifecycle(args []string, out io.Writer, errOut io.Writer, verb string) int {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	var canister string
	conn.register(fs)
	fs.StringVar(&canister, "canister", "", "target canister principal")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	target, err := parseCanister(canister)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	switch verb {
	case "start":
		err = client.StartCanister(ctx, target)
	case "stop":
		err = client.StopCanister(ctx, target)
	case "delete":
		err = client.DeleteCanister(ctx, target)
	case "uninstall":
		err = client.UninstallCode(ctx, target)
	}
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", verb, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdRawRand(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("raw-rand", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	conn.register(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	client, closeFn, err := conn.connect()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeFn()

	ctx, cancel := conn.ctx()
	defer cancel()
	b, err := client.RawRand(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "raw-rand: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, hex.EncodeToString(b))
	return 0
}

func cmdPrincipal(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("principal", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var conn connFlags
	conn.register(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	id, err := conn.identity()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	_, _ = fmt.Fprintln(out, id.Sender())
	return 0
}
