// Command codeprobe exercises the code arena and call boundary on this host:
// it allocates and publishes a batch of stub functions, calls them natively
// where supported and optionally runs a Wasm export through wazero.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/codemem"
	jerrors "github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/faultroute"
	"github.com/wippyai/wasm-jitmem/invoke"
	"github.com/wippyai/wasm-jitmem/trap"
)

// stubBody is "mov eax, 1; ret"; the rest of each body is int3 padding.
var stubBody = []byte{0xb8, 0x01, 0x00, 0x00, 0x00, 0xc3}

func main() {
	var (
		configFile = flag.String("config", "", "Path to a TOML config file (default ./"+ConfigFileName+" if present)")
		routing    = flag.String("routing", "", "Fault routing strategy: default, signal, table")
		chunk      = flag.Int("chunk", -1, "Minimum mapping size in bytes")
		funcs      = flag.Int("funcs", -1, "Number of stub functions to allocate")
		size       = flag.Int("size", -1, "Size of each stub function in bytes")
		verify     = flag.Bool("verify", false, "Check published mappings for modification")
		wasmFile   = flag.String("wasm", "", "Wasm module to call through wazero")
		funcName   = flag.String("func", "", "Export to call in the wasm module")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "routing":
			cfg.Arena.Routing = *routing
		case "chunk":
			cfg.Arena.MinimumChunk = *chunk
		case "funcs":
			cfg.Probe.Functions = *funcs
		case "size":
			cfg.Probe.Size = *size
		case "verify":
			cfg.Arena.Verify = *verify
		case "wasm":
			cfg.Probe.Wasm = *wasmFile
		case "func":
			cfg.Probe.Func = *funcName
		case "v":
			if *verbose {
				cfg.Log.Level = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	codemem.SetLogger(log.Named("codemem"))
	faultroute.SetLogger(log.Named("faultroute"))
	trap.SetLogger(log.Named("trap"))
	invoke.SetLogger(log.Named("invoke"))

	if err := run(context.Background(), cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return LoadConfig(ConfigFileName)
	}
	return DefaultConfig(), nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = true
	if isTerminal(os.Stderr) {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc.Build()
}

func run(ctx context.Context, cfg *Config, log *zap.Logger) error {
	out := newReport(os.Stdout)

	routing, err := faultroute.Parse(cfg.Arena.Routing)
	if err != nil {
		return err
	}

	arena := codemem.NewWithConfig(&codemem.Config{
		Routing:         routing,
		MinimumChunk:    cfg.Arena.MinimumChunk,
		VerifyPublished: cfg.Arena.Verify,
	})
	defer func() {
		if err := arena.Close(); err != nil {
			log.Warn("arena close", zap.Error(err))
		}
	}()

	bodies, err := arena.AllocateCopyOfByteSlices(stubs(cfg.Probe.Functions, cfg.Probe.Size))
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	arena.Publish()

	s := arena.Stats()
	out.title("Code arena")
	out.field("Routing", "%s", routing.Name())
	out.field("Functions", "%d x %d bytes", len(bodies), cfg.Probe.Size)
	out.field("Mappings", "%d (%d published, %d bytes reserved)", s.Mappings, s.Published, s.Reserved)

	if len(bodies) > 0 {
		if err := callNative(ctx, out, bodies); err != nil {
			return err
		}
	}

	if cfg.Arena.Verify {
		if err := arena.Verify(); err != nil {
			return err
		}
		out.ok("Verify", "ok")
	}

	if cfg.Probe.Wasm != "" {
		return callWasm(ctx, out, cfg.Probe.Wasm, cfg.Probe.Func)
	}
	return nil
}

func stubs(n, size int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		b := bytes.Repeat([]byte{0xcc}, size)
		copy(b, stubBody)
		out[i] = b
	}
	return out
}

func callNative(ctx context.Context, out *report, bodies [][]jitmem.FunctionBody) error {
	native, err := invoke.NewNative()
	if err != nil {
		out.field("Native", "skipped (%v)", err)
		return nil
	}

	b := invoke.New(native)
	ctx, _ = trap.Ensure(ctx)
	for i, body := range bodies {
		if err := b.Call(ctx, 0, jitmem.Entry(body)); err != nil {
			return fmt.Errorf("call function %d: %w", i, err)
		}
	}
	out.ok("Native", "%d calls ok", len(bodies))
	return nil
}

func callWasm(ctx context.Context, out *report, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	const ref jitmem.CodeRef = 1
	w := invoke.NewWazero()
	if err := w.BindExport(mod, name, ref); err != nil {
		return err
	}

	out.title("Wasm")
	out.field("Export", "%s", name)
	err = invoke.New(w).CallWithArgs(ctx, 0, ref, make([]uint64, 8))
	var trapErr *jerrors.TrapError
	switch {
	case errors.As(err, &trapErr):
		out.trapped("Trapped", trapErr)
	case err != nil:
		return err
	default:
		out.ok("Returned", "normally")
	}
	return nil
}
